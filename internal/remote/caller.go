// Package remote sends signed calls to the visual API and normalizes its
// responses.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jordanharrington/visualgate/internal/volc"
)

const (
	defaultScheme    = "https"
	maxEnvelopeBytes = 16 << 20
)

// Doer is the subset of *http.Client the caller needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Caller issues one signed POST per call. It never retries.
type Caller struct {
	signer  *volc.Signer
	client  Doer
	scheme  string
	baseURL string
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithHTTPClient replaces the default client.
func WithHTTPClient(d Doer) Option {
	return func(c *Caller) { c.client = d }
}

// WithTimeout bounds each call. Zero leaves only the inbound context in charge.
func WithTimeout(d time.Duration) Option {
	return func(c *Caller) { c.timeout = d }
}

// WithBaseURL sends requests to u instead of https://<signer host>/. The
// signature still names the signer host.
func WithBaseURL(u string) Option {
	return func(c *Caller) { c.baseURL = u }
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Caller) { c.log = l }
}

func NewCaller(signer *volc.Signer, opts ...Option) *Caller {
	c := &Caller{
		signer: signer,
		client: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		scheme: defaultScheme,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query renders the Action/Version pair the API dispatches on.
func Query(action, version string) string {
	return url.Values{"Action": {action}, "Version": {version}}.Encode()
}

// Call signs body for action/version, sends it and decodes the envelope. A
// provider-reported failure is returned as *RejectionError alongside the
// envelope so callers can still inspect it.
func (c *Caller) Call(ctx context.Context, action, version string, body []byte) (*Envelope, error) {
	status, raw, err := c.Forward(ctx, Query(action, version), body)
	if err != nil {
		return nil, err
	}

	env, err := Decode(raw)
	if status/100 != 2 {
		te := &TransportError{StatusCode: status}
		if err == nil && !env.OK {
			te.Message = env.ErrorMessage
		}
		return nil, te
	}
	if err != nil {
		return nil, err
	}

	c.log.DebugContext(ctx, "remote call finished",
		slog.String("action", action),
		slog.String("version", version),
		slog.Bool("ok", env.OK),
		slog.String("request_id", env.RequestID))

	return env, env.Err()
}

// Forward signs and sends body with the query string as given and returns the
// raw status and body. Transport failures are the only errors.
func (c *Caller) Forward(ctx context.Context, query string, body []byte) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(query), bytes.NewReader(body))
	if err != nil {
		return 0, nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range c.signer.Sign(http.MethodPost, query, body) {
		req.Header[k] = v
	}
	req.Host = c.signer.Host()

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.log.DebugContext(ctx, "remote response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("elapsed", time.Since(start)))

	return resp.StatusCode, raw, nil
}

func (c *Caller) endpoint(query string) string {
	base := c.baseURL
	if base == "" {
		base = c.scheme + "://" + c.signer.Host()
	}
	u := base + "/"
	if query != "" {
		u += "?" + query
	}
	return u
}

// IsTimeout reports whether err came from a deadline on the call context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
