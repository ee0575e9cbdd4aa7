package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/generation"
	"github.com/jordanharrington/visualgate/internal/json"
	"github.com/jordanharrington/visualgate/internal/relay"
	"github.com/jordanharrington/visualgate/internal/task"
)

const maxBodyBytes = 32 << 20

type generator interface {
	Submit(ctx context.Context, f generation.Flow, in v1.GenerateRequest) (task.Outcome, error)
	Poll(ctx context.Context, pf generation.PollFlow, taskID string) (task.Outcome, error)
}

type forwarder interface {
	Forward(ctx context.Context, query string, body []byte) (int, []byte, error)
}

type archiver interface {
	Presign(ctx context.Context, taskID, filename, contentType string) (*v1.PresignedUrl, error)
}

type handler struct {
	gen     generator
	forward forwarder
	relay   *relay.Relay
	archive archiver
	log     *slog.Logger
}

// handleSubmit handles http.MethodPost to the generation route for f.
func (h *handler) handleSubmit(f generation.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in v1.GenerateRequest
		if !h.decode(w, r, &in) {
			return
		}

		out, err := h.gen.Submit(r.Context(), f, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v1.TaskResponse{Success: true, Data: taskData(out, f.Locator.Type)})
	}
}

// handleVideoStatus handles http.MethodPost to /api/check-status.
func (h *handler) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	var in v1.PollRequest
	if !h.decode(w, r, &in) {
		return
	}
	pf, err := generation.VideoPollFor(in.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.poll(w, r, pf, in.TaskID)
}

// handleImageEditStatus handles http.MethodPost to /api/image-edit-status.
func (h *handler) handleImageEditStatus(w http.ResponseWriter, r *http.Request) {
	var in v1.PollRequest
	if !h.decode(w, r, &in) {
		return
	}
	h.poll(w, r, generation.ImageEditPoll, in.TaskID)
}

func (h *handler) poll(w http.ResponseWriter, r *http.Request, pf generation.PollFlow, taskID string) {
	out, err := h.gen.Poll(r.Context(), pf, taskID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v1.TaskResponse{Success: true, Data: taskData(out, pf.Locator.Type)})
}

func taskData(out task.Outcome, rt task.ResultType) *v1.TaskData {
	d := &v1.TaskData{
		TaskID:         out.TaskID,
		Status:         string(out.State),
		ProviderStatus: out.RawStatus,
	}
	if out.State != task.Done {
		d.StatusMessage = out.Message
		return d
	}
	d.Result = &v1.Result{
		Type:        v1.ResultType(rt),
		URL:         out.URL(),
		Description: out.Description,
	}
	if len(out.URLs) > 1 {
		d.Result.URLs = out.URLs
	}
	if rt == task.Video {
		d.VideoURL = out.URL()
	}
	return d
}

// handleRelay handles http.MethodGet to a media proxy route.
func (h *handler) handleRelay(p relay.Profile) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		download := p.DownloadByDefault
		if v := q.Get("download"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				h.fail(w, r, &generation.ValidationError{Field: "download", Message: "must be true or false"})
				return
			}
			download = b
		}

		s, err := h.relay.Open(r.Context(), p, q.Get("url"))
		if err != nil {
			h.failRelay(w, r, err)
			return
		}
		defer func() { _ = s.Close() }()

		n, err := s.Pipe(w, q.Get("filename"), download)
		if err != nil {
			h.log.WarnContext(r.Context(), "relay aborted",
				slog.String("media", p.Name),
				slog.Int64("bytes", n),
				slog.Any("error", err))
			return
		}
		h.log.DebugContext(r.Context(), "relay finished",
			slog.String("media", p.Name),
			slog.Int64("bytes", n))
	}
}

// handlePassthrough handles http.MethodPost to /api/volcengine. The query string
// is signed and forwarded as given and the upstream answer is returned as is.
func (h *handler) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("Action") == "" {
		h.fail(w, r, &generation.ValidationError{Field: "Action", Message: "query parameter is required"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, &generation.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	status, raw, err := h.forward.Forward(r.Context(), r.URL.RawQuery, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

var av = struct {
	maxTaskIDLen        int
	maxFilenameLen      int
	allowedContentTypes map[string]bool
}{
	maxTaskIDLen:   128,
	maxFilenameLen: 255,
	allowedContentTypes: map[string]bool{
		"application/octet-stream": true,
		"image/png":                true,
		"image/jpeg":               true,
		"image/webp":               true,
		"video/mp4":                true,
		"video/webm":               true,
	},
}

// handleArchive handles http.MethodPost to /api/archive/presign.
func (h *handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	var in v1.ArchiveRequest
	if !h.decode(w, r, &in) {
		return
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}
	if err := validateArchiveRequest(in); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.archive.Presign(r.Context(), in.TaskID, in.Filename, in.ContentType)
	if err != nil {
		h.log.ErrorContext(r.Context(), "archive presign failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, v1.ArchiveResponse{Error: fmt.Sprintf("presign failed: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, v1.ArchiveResponse{Success: true, Data: u})
}

func validateArchiveRequest(in v1.ArchiveRequest) error {
	if in.TaskID == "" || len(in.TaskID) > av.maxTaskIDLen || strings.ContainsAny(in.TaskID, "/\\") || in.TaskID == "." || in.TaskID == ".." {
		return &generation.ValidationError{Field: "task_id", Message: fmt.Sprintf("must be 1-%d characters without path separators", av.maxTaskIDLen)}
	}
	if in.Filename == "" || len(in.Filename) > av.maxFilenameLen || path.Base(in.Filename) != in.Filename || strings.HasPrefix(in.Filename, ".") {
		return &generation.ValidationError{Field: "filename", Message: fmt.Sprintf("must be a plain name of 1-%d characters", av.maxFilenameLen)}
	}
	if !av.allowedContentTypes[in.ContentType] {
		return &generation.ValidationError{Field: "content_type", Message: fmt.Sprintf("unsupported content type %s", in.ContentType)}
	}
	return nil
}

// handleHealth handles http.MethodGet to /health.
func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, v1.HealthResponse{Status: "healthy"})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.fail(w, r, &generation.ValidationError{Field: "body", Message: fmt.Sprintf("failed to decode request: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
