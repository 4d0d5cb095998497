// Package crypto signs and verifies provider callback signatures.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign returns base64(HMAC-SHA256(secret, clientID + timestamp)).
func Sign(secret []byte, clientID, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(clientID))
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the expected signature for
// timestamp. The comparison is constant time. An empty signature, timestamp
// or secret never verifies.
func Verify(secret []byte, clientID, timestamp, signature string) bool {
	if len(secret) == 0 || timestamp == "" || signature == "" {
		return false
	}
	want := Sign(secret, clientID, timestamp)
	return hmac.Equal([]byte(want), []byte(signature))
}
