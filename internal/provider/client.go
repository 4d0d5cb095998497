// Package provider is the filing provider client. Every failure it returns is
// a classified *Error; only transient failures are retried, with jittered
// exponential backoff and a bounded number of attempts.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/convert"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
	"github.com/acoyfellow/tax-agent/internal/redact"
)

// maxBody caps how much of a provider response is read.
const maxBody = 4 << 20

// Config holds endpoint and credential settings.
type Config struct {
	BaseURL   string
	AuthURL   string
	Creds     Credentials
	Timeout   time.Duration // per attempt
	Policy    Policy
	TokenSkew time.Duration
}

// Tokener yields a bearer token for outbound calls.
type Tokener interface {
	Token(ctx context.Context) (string, error)
}

var _ Tokener = (*TokenSource)(nil)

// Client talks to the filing provider.
type Client struct {
	base   string
	http   *http.Client
	tokens Tokener
	policy Policy
	draw   func() float64
	log    *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTokenSource replaces the credential exchange.
func WithTokenSource(t Tokener) Option { return func(c *Client) { c.tokens = t } }

// WithJitter replaces the random source for backoff jitter. draw must
// return values in [0,1).
func WithJitter(draw func() float64) Option { return func(c *Client) { c.draw = draw } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client. Zero policy fields fall back to DefaultPolicy.
func New(cfg Config, opts ...Option) *Client {
	p := cfg.Policy
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	c := &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		policy: p,
		draw:   defaultDraw,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.tokens == nil {
		c.tokens = NewTokenSource(cfg.AuthURL, cfg.Creds, c.http, cfg.TokenSkew, c.log)
	}
	return c
}

// enveloped is any response type that carries the provider status block.
type enveloped interface {
	Head() *wire.Envelope
}

// do sends one logical call, retrying transient failures. The call runs
// detached from ctx cancellation: once a filing is sent it is seen through.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in any, out enveloped) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindBusiness, Op: op, Message: "cannot encode request", Err: err}
		}
		payload = b
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx = context.WithoutCancel(ctx)
	attempt := 0
	err := retry.Do(ctx, c.policy.backoff(c.draw), func(ctx context.Context) error {
		attempt++
		err := c.attempt(ctx, op, method, target, payload, out)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			c.log.Warn("provider call failed, will retry if attempts remain",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.policy.MaxAttempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		c.log.Debug("provider call ok", zap.String("op", op), zap.Int("attempts", attempt))
	case IsAuth(err):
		c.log.Error("provider rejected credentials", zap.String("op", op), zap.Error(err))
	default:
		c.log.Info("provider call failed", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
	}
	return err
}

func (c *Client) attempt(ctx context.Context, op, method, target string, payload []byte, out enveloped) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &Error{Kind: KindBusiness, Op: op, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Kind: KindTransient, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Kind: classifyHTTP(resp.StatusCode), Op: op, StatusCode: resp.StatusCode}
		var env wire.Envelope
		if json.Unmarshal(raw, &env) == nil {
			e.Kind = failureKind(resp.StatusCode, env.StatusCode, env.StatusName)
			e.ProviderCode = env.StatusCode
			e.Message = envelopeMessage(env)
		}
		return e
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindBusiness, Op: op, StatusCode: resp.StatusCode, Message: "undecodable response", Err: err}
	}
	env := out.Head()
	if env.StatusCode == 0 {
		return nil
	}
	if kind, ok := classifyBody(env.StatusCode, env.StatusName); !ok {
		return &Error{
			Kind:         kind,
			Op:           op,
			StatusCode:   resp.StatusCode,
			ProviderCode: env.StatusCode,
			Message:      envelopeMessage(*env),
		}
	}
	return nil
}

// envelopeMessage renders a scrubbed one-line description of a provider
// status block.
func envelopeMessage(env wire.Envelope) string {
	parts := make([]string, 0, 2)
	if env.StatusMessage != "" {
		parts = append(parts, env.StatusMessage)
	} else if env.StatusName != "" {
		parts = append(parts, env.StatusName)
	}
	if detail := convert.ErrorMessages(env.Errors); detail != "" {
		parts = append(parts, detail)
	}
	return redact.Scrub(strings.Join(parts, ": "))
}
