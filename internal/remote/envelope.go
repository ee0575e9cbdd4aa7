package remote

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// SuccessCode is the business code the visual API reports on success.
const SuccessCode = 10000

const snippetLen = 256

// Envelope is the provider response with both wire shapes folded together:
//
//	{"ResponseMetadata": {"Error": {...}}, "Result": {"code": ..., "data": {...}}}
//	{"code": ..., "message": ..., "data": {...}}
//
// Payload always points at the inner data object.
type Envelope struct {
	OK           bool
	ErrorCode    string
	ErrorMessage string
	RequestID    string
	Payload      gjson.Result
	Raw          []byte
}

// Err returns the rejection carried by a failed envelope, or nil.
func (e *Envelope) Err() error {
	if e.OK {
		return nil
	}
	return &RejectionError{Code: e.ErrorCode, Message: e.ErrorMessage, RequestID: e.RequestID}
}

// Decode normalizes raw into an Envelope. Only bodies that are not a JSON
// object fail; provider-reported errors come back as an envelope with OK unset.
func Decode(raw []byte) (*Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &DecodeError{Snippet: snippet(raw)}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, &DecodeError{Snippet: snippet(raw)}
	}

	env := &Envelope{OK: true, Raw: raw}
	env.RequestID = firstString(root, "ResponseMetadata.RequestId", "request_id", "Result.request_id")

	if e := root.Get("ResponseMetadata.Error"); present(e) {
		env.OK = false
		env.ErrorCode = firstString(e, "Code", "CodeN")
		env.ErrorMessage = e.Get("Message").String()
		if env.ErrorMessage == "" {
			env.ErrorMessage = "remote reported an error"
		}
		return env, nil
	}

	body := root
	if result := root.Get("Result"); result.IsObject() {
		body = result
	}
	if data := body.Get("data"); data.Exists() {
		env.Payload = data
	} else if body.Raw != root.Raw {
		env.Payload = body
	}

	if code := body.Get("code"); code.Exists() && code.Int() != SuccessCode {
		env.OK = false
		env.ErrorCode = code.String()
		env.ErrorMessage = body.Get("message").String()
		if env.ErrorMessage == "" {
			env.ErrorMessage = fmt.Sprintf("remote rejected request (code %s)", code.String())
		}
	}
	return env, nil
}

// present reports whether r holds a value other than null, false, zero or an
// empty string, object or array.
func present(r gjson.Result) bool {
	switch {
	case r.IsObject():
		return len(r.Map()) > 0
	case r.IsArray():
		return len(r.Array()) > 0
	}
	return r.Type == gjson.True || r.Type == gjson.String && r.Str != "" || r.Type == gjson.Number && r.Num != 0
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func snippet(b []byte) string {
	if len(b) > snippetLen {
		return string(b[:snippetLen])
	}
	return string(b)
}
