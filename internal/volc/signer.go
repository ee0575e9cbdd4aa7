// Package volc signs requests for the Volcengine visual API.
//
// The scheme is a close relative of AWS SigV4 with its own literals: the
// algorithm is "HMAC-SHA256", the key chain starts from the raw secret key and
// ends with "request", and exactly three headers are signed (host,
// x-content-sha256, x-date) in that order.
package volc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	Algorithm     = "HMAC-SHA256"
	SignedHeaders = "host;x-content-sha256;x-date"
	ContentType   = "application/json"

	HeaderDate          = "X-Date"
	HeaderContentSHA256 = "X-Content-Sha256"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	timeFormat  = "20060102T150405Z"
	shortFormat = "20060102"
	scopeTerm   = "request"
	canonURI    = "/"
)

// Signer produces signed header sets for a fixed credential set.
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner validates creds once and returns a signer bound to them.
func NewSigner(creds Credentials, opts ...Option) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	s := &Signer{creds: creds, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Host is the API host requests must be sent to for the signature to verify.
func (s *Signer) Host() string {
	return s.creds.Host
}

// Sign returns the headers for a request signed at the current instant.
func (s *Signer) Sign(method, query string, body []byte) http.Header {
	return s.SignAt(method, query, body, s.now())
}

// SignAt returns the headers for a request signed at t.
func (s *Signer) SignAt(method, query string, body []byte, t time.Time) http.Header {
	sc := newSigningContext(t)
	payloadHash := PayloadHash(body)
	canonical := CanonicalRequest(method, CanonicalQueryString(query), s.creds.Host, payloadHash, sc.timestamp)
	scope := s.credentialScope(sc.date)
	toSign := StringToSign(sc.timestamp, scope, canonical)

	key := SigningKey(s.creds.SecretKey, sc.date, s.creds.Region, s.creds.Service)
	signature := hex.EncodeToString(hmacSHA256(key, toSign))

	h := make(http.Header, 4)
	h.Set(HeaderDate, sc.timestamp)
	h.Set(HeaderAuthorization, Algorithm+" Credential="+s.creds.AccessKey+"/"+scope+
		", SignedHeaders="+SignedHeaders+", Signature="+signature)
	h.Set(HeaderContentSHA256, payloadHash)
	h.Set(HeaderContentType, ContentType)
	return h
}

func (s *Signer) credentialScope(date string) string {
	return date + "/" + s.creds.Region + "/" + s.creds.Service + "/" + scopeTerm
}

type signingContext struct {
	timestamp string
	date      string
}

func newSigningContext(t time.Time) signingContext {
	t = t.UTC()
	return signingContext{timestamp: t.Format(timeFormat), date: t.Format(shortFormat)}
}

// PayloadHash is the lowercase hex SHA-256 of body. A nil or empty body hashes
// like the empty string.
func PayloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CanonicalQueryString sorts the pairs of query by key. Pairs without '=' are
// dropped and a repeated key keeps its last value. Values are used as given;
// no escaping is applied.
func CanonicalQueryString(query string) string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		params[k] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// CanonicalRequest assembles the string both sides hash. The URI is always "/".
func CanonicalRequest(method, canonicalQuery, host, payloadHash, timestamp string) string {
	headers := "host:" + host + "\n" +
		"x-content-sha256:" + payloadHash + "\n" +
		"x-date:" + timestamp + "\n"

	return method + "\n" +
		canonURI + "\n" +
		canonicalQuery + "\n" +
		headers + "\n" +
		SignedHeaders + "\n" +
		payloadHash
}

// StringToSign binds the canonical request digest to a timestamp and scope.
func StringToSign(timestamp, scope, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return Algorithm + "\n" + timestamp + "\n" + scope + "\n" + hex.EncodeToString(sum[:])
}

// SigningKey derives the per-day key: secret -> date -> region -> service -> "request".
// It is recomputed for every request.
func SigningKey(secret, date, region, service string) []byte {
	k := hmacSHA256([]byte(secret), date)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, scopeTerm)
}

func hmacSHA256(key []byte, msg string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return m.Sum(nil)
}
