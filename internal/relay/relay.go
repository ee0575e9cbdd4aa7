// Package relay streams remote media back to a caller in bounded chunks.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jordanharrington/visualgate/internal/remote"
)

const (
	// ChunkSize bounds how much of the origin body is held at once.
	ChunkSize = 8 << 10

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	referer   = "https://jimeng.jd.com/"
)

// Profile fixes the per-media request headers and response defaults.
type Profile struct {
	Name               string
	Accept             string
	DefaultFilename    string
	DefaultContentType string
	DownloadByDefault  bool
	AcceptRanges       bool
}

var (
	VideoProfile = Profile{
		Name:               "video",
		Accept:             "video/webm,video/ogg,video/*;q=0.9,application/ogg;q=0.7,audio/*;q=0.6,*/*;q=0.5",
		DefaultFilename:    "generated-video.mp4",
		DefaultContentType: "video/mp4",
		AcceptRanges:       true,
	}
	ImageProfile = Profile{
		Name:               "image",
		Accept:             "image/webp,image/apng,image/*,*/*;q=0.8",
		DefaultFilename:    "generated-image.png",
		DefaultContentType: "image/png",
		DownloadByDefault:  true,
	}
)

// URLError rejects a media URL before any request is made.
type URLError struct {
	URL    string
	Reason string
}

func (e *URLError) Error() string {
	return fmt.Sprintf("invalid media url %q: %s", e.URL, e.Reason)
}

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// Relay fetches origin media with client-like headers.
type Relay struct {
	client       remote.Doer
	allowedHosts map[string]bool
	log          *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the default origin client.
func WithHTTPClient(d remote.Doer) Option {
	return func(r *Relay) { r.client = d }
}

// WithAllowedHosts restricts origins to hosts. An empty list allows any host.
func WithAllowedHosts(hosts []string) Option {
	return func(r *Relay) {
		r.allowedHosts = make(map[string]bool, len(hosts))
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				r.allowedHosts[h] = true
			}
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.log = l }
}

// New builds a relay. headerTimeout bounds the wait for origin response
// headers; the body itself is not time limited.
func New(headerTimeout time.Duration, opts ...Option) *Relay {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	r := &Relay{
		client: &http.Client{Transport: tr},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stream is an open origin response. It must be closed on every path.
type Stream struct {
	resp    *http.Response
	profile Profile
	log     *slog.Logger
}

// Open validates rawURL and requests it. A non-2xx origin status is returned
// as *remote.TransportError carrying that status, with nothing written yet.
func (r *Relay) Open(ctx context.Context, p Profile, rawURL string) (*Stream, error) {
	u, err := r.check(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &URLError{URL: rawURL, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", p.Accept)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &remote.TransportError{Err: err}
	}
	if resp.StatusCode/100 != 2 {
		_ = resp.Body.Close()
		return nil, &remote.TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s request failed: %d", p.Name, resp.StatusCode),
		}
	}
	return &Stream{resp: resp, profile: p, log: r.log}, nil
}

func (r *Relay) check(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, &URLError{URL: rawURL, Reason: "missing url"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &URLError{URL: rawURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &URLError{URL: rawURL, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &URLError{URL: rawURL, Reason: "missing host"}
	}
	if len(r.allowedHosts) > 0 && !r.allowedHosts[strings.ToLower(u.Hostname())] {
		return nil, &URLError{URL: rawURL, Reason: "host not allowed"}
	}
	return u, nil
}

// Close releases the origin connection.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}

// Pipe writes the response headers and copies the body to w one chunk at a
// time, flushing after each chunk. filename falls back to the profile default.
// A failure after the headers are sent ends the response early.
func (s *Stream) Pipe(w http.ResponseWriter, filename string, download bool) (int64, error) {
	h := w.Header()
	ct := s.resp.Header.Get("Content-Type")
	if ct == "" {
		ct = s.profile.DefaultContentType
	}
	h.Set("Content-Type", ct)
	if s.resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(s.resp.ContentLength, 10))
	}
	h.Set("Cache-Control", "no-cache")
	if s.profile.AcceptRanges {
		h.Set("Accept-Ranges", "bytes")
	}
	if download {
		h.Set("Content-Disposition", ContentDisposition(filename, s.profile.DefaultFilename))
	}
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	bp := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bp)
	buf := *bp

	var written int64
	for {
		n, rerr := s.resp.Body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("write to client: %w", werr)
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return written, fmt.Errorf("flush to client: %w", ferr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			s.log.Warn("origin stream ended early",
				slog.String("media", s.profile.Name),
				slog.Int64("bytes", written),
				slog.Any("error", rerr))
			return written, fmt.Errorf("read from origin: %w", rerr)
		}
	}
}

// ContentDisposition renders an attachment header for name, falling back to
// def when name is empty after removing quotes and control characters.
func ContentDisposition(name, def string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if strings.TrimSpace(clean) == "" {
		clean = def
	}
	return `attachment; filename="` + clean + `"`
}
