package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilingRequest_WithDefaults(t *testing.T) {
	t.Parallel()

	r := FilingRequest{}.WithDefaults()
	require.Equal(t, DefaultKindOfEmployer, r.KindOfEmployer)
	require.Equal(t, DefaultKindOfPayer, r.KindOfPayer)

	r = FilingRequest{KindOfEmployer: "STATE", KindOfPayer: "CT1"}.WithDefaults()
	require.Equal(t, "STATE", r.KindOfEmployer)
	require.Equal(t, "CT1", r.KindOfPayer)
}

func TestNewValidationResult(t *testing.T) {
	t.Parallel()

	issues := []ValidationIssue{
		{Field: "a", Severity: SeverityWarning},
		{Field: "a", Severity: SeverityWarning},
		{Field: "b", Severity: SeverityInfo},
	}
	res := NewValidationResult(issues, "ok", "structural")
	require.True(t, res.Valid)
	require.Len(t, res.Issues, 3, "duplicates are kept")

	issues[0].Severity = SeverityError
	require.Equal(t, SeverityWarning, res.Issues[0].Severity, "result owns its issue slice")

	res = NewValidationResult(issues, "bad", "structural")
	require.False(t, res.Valid)
}

func TestSubmissionStatus(t *testing.T) {
	t.Parallel()

	require.True(t, StatusAccepted.Terminal())
	require.True(t, StatusRejected.Terminal())
	require.False(t, StatusPartial.Terminal())
	require.False(t, StatusCreated.Terminal())
	require.True(t, StatusPartial.Valid())
	require.False(t, SubmissionStatus("DONE").Valid())
}

func TestAccessToken_UsableAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := AccessToken{Value: "x", ExpiresAt: now.Add(2 * time.Minute)}
	require.True(t, tok.UsableAt(now, time.Minute))
	require.False(t, tok.UsableAt(now.Add(61*time.Second), time.Minute))
	require.False(t, AccessToken{}.UsableAt(now, 0))
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	rec := func(states ...string) []RecordOutcome {
		out := make([]RecordOutcome, 0, len(states))
		for _, s := range states {
			out = append(out, RecordOutcome{RecordID: "r", Status: s})
		}
		return out
	}

	tests := []struct {
		name string
		in   []RecordOutcome
		want SubmissionStatus
	}{
		{"empty", nil, StatusTransmitted},
		{"all accepted", rec("ACCEPTED", "Accepted"), StatusAccepted},
		{"all rejected", rec("REJECTED", "rejected"), StatusRejected},
		{"mixed", rec("ACCEPTED", "REJECTED"), StatusPartial},
		{"accepted with pending", rec("ACCEPTED", "PROCESSING"), StatusPartial},
		{"pending only", rec("CREATED", "TRANSMITTED"), StatusTransmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeriveStatus(tt.in))
		})
	}
}

func TestSubmissionStatus_Precedes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to SubmissionStatus
		want     bool
	}{
		{"", StatusCreated, true},
		{StatusCreated, StatusTransmitted, true},
		{StatusTransmitted, StatusAccepted, true},
		{StatusCreated, StatusPartial, true},
		{StatusTransmitted, StatusTransmitted, false},
		{StatusTransmitted, StatusCreated, false},
		{StatusAccepted, StatusTransmitted, false},
		{StatusRejected, StatusCreated, false},
		{StatusPartial, StatusAccepted, false},
	}
	for _, tt := range tests {
		if got := tt.from.Precedes(tt.to); got != tt.want {
			t.Fatalf("%q.Precedes(%q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	require.True(t, StatusPartial.Decided())
	require.False(t, StatusTransmitted.Decided())
}
