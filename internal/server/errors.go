package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/generation"
	"github.com/jordanharrington/visualgate/internal/relay"
	"github.com/jordanharrington/visualgate/internal/remote"
)

// statusFor maps an error to the HTTP status reported to the caller.
func statusFor(err error) int {
	var (
		ve *generation.ValidationError
		te *generation.TerminalError
		re *remote.RejectionError
		ue *relay.URLError
		tr *remote.TransportError
		de *remote.DecodeError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &te), errors.As(err, &re), errors.As(err, &ue):
		return http.StatusBadRequest
	case remote.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &tr):
		if tr.StatusCode >= 500 {
			return tr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &de):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, statusFor(err), err)
}

// failRelay reports origin failures with the origin's own status.
func (h *handler) failRelay(w http.ResponseWriter, r *http.Request, err error) {
	var tr *remote.TransportError
	if errors.As(err, &tr) && tr.StatusCode != 0 && !remote.IsTimeout(err) {
		h.writeError(w, r, tr.StatusCode, err)
		return
	}
	h.fail(w, r, err)
}

// routeError answers requests no route accepts with the JSON error envelope.
func (h *handler) routeError(status int, msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, status, fmt.Errorf("%s: %s %s", msg, r.Method, r.URL.Path))
	})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := v1.TaskResponse{Error: err.Error()}
	var te *generation.TerminalError
	if errors.As(err, &te) {
		resp.Status = string(te.State)
	}

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	h.log.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err))

	writeJSON(w, status, resp)
}
