package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
	"github.com/acoyfellow/tax-agent/internal/redact"
)

// defaultTokenLifetime is assumed when the exchange omits ExpiresIn.
const defaultTokenLifetime = time.Hour

// Credentials identify this service to the provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserToken    string
}

// TokenSource exchanges a signed assertion for a bearer token and caches it
// until skew before its hard expiry. Concurrent refreshes are coalesced.
type TokenSource struct {
	authURL string
	creds   Credentials
	http    *http.Client
	skew    time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu  sync.RWMutex
	tok model.AccessToken
	sf  singleflight.Group
}

// NewTokenSource constructs a TokenSource.
func NewTokenSource(authURL string, creds Credentials, hc *http.Client, skew time.Duration, log *zap.Logger) *TokenSource {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenSource{
		authURL: authURL,
		creds:   creds,
		http:    hc,
		skew:    skew,
		now:     time.Now,
		log:     log,
	}
}

// Token returns a usable bearer token, exchanging credentials if the cached
// one is missing or inside the skew window.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if v, ok := s.cached(); ok {
		return v, nil
	}
	v, err, _ := s.sf.Do("token", func() (any, error) {
		if v, ok := s.cached(); ok {
			return v, nil
		}
		// The exchange is shared by every waiter, so one caller leaving must not cancel it.
		tok, err := s.exchange(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.tok = tok
		s.mu.Unlock()
		s.log.Debug("provider token refreshed", zap.Time("expires_at", tok.ExpiresAt))
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok.UsableAt(s.now(), s.skew) {
		return s.tok.Value, true
	}
	return "", false
}

// assertion builds the HS256 client assertion.
func (s *TokenSource) assertion() (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Issuer:   s.creds.ClientID,
		Subject:  s.creds.ClientID,
		Audience: jwt.ClaimStrings{s.creds.UserToken},
		IssuedAt: jwt.NewNumericDate(s.now()),
		ID:       jti.String(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(s.creds.ClientSecret))
}

func (s *TokenSource) exchange(ctx context.Context) (model.AccessToken, error) {
	const op = "token"

	jws, err := s.assertion()
	if err != nil {
		return model.AccessToken{}, &Error{Kind: KindAuth, Op: op, Message: "cannot sign client assertion", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.authURL, nil)
	if err != nil {
		return model.AccessToken{}, &Error{Kind: KindBusiness, Op: op, Message: "bad auth url", Err: err}
	}
	req.Header.Set("Authentication", jws)
	req.Header.Set("Accept", "application/json")

	issued := s.now()
	resp, err := s.http.Do(req)
	if err != nil {
		return model.AccessToken{}, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return model.AccessToken{}, &Error{Kind: KindTransient, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{
			Kind:       classifyHTTP(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    redact.Scrub(snippet(body)),
		}
		var tr wire.TokenResponse
		if json.Unmarshal(body, &tr) == nil {
			e.Kind = failureKind(resp.StatusCode, tr.StatusCode, tr.StatusName)
			e.ProviderCode = tr.StatusCode
		}
		return model.AccessToken{}, e
	}

	var tr wire.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.AccessToken{}, &Error{Kind: KindBusiness, Op: op, StatusCode: resp.StatusCode, Message: "undecodable token response", Err: err}
	}
	if tr.StatusCode != 0 {
		if kind, ok := classifyBody(tr.StatusCode, tr.StatusName); !ok {
			return model.AccessToken{}, &Error{
				Kind:         kind,
				Op:           op,
				StatusCode:   resp.StatusCode,
				ProviderCode: tr.StatusCode,
				Message:      redact.Scrub(tr.StatusMessage),
			}
		}
	}
	if tr.AccessToken == "" {
		return model.AccessToken{}, &Error{Kind: KindAuth, Op: op, StatusCode: resp.StatusCode, Err: errors.New("empty access token")}
	}

	life := time.Duration(tr.ExpiresIn) * time.Second
	if life <= 0 {
		life = defaultTokenLifetime
	}
	return model.AccessToken{Value: tr.AccessToken, ExpiresAt: issued.Add(life)}, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return fmt.Sprintf("%s...", b[:max])
	}
	return string(b)
}
