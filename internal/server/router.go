package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jordanharrington/visualgate/internal/config"
	"github.com/jordanharrington/visualgate/internal/generation"
	"github.com/jordanharrington/visualgate/internal/presign"
	"github.com/jordanharrington/visualgate/internal/relay"
	"github.com/jordanharrington/visualgate/internal/remote"
	"github.com/jordanharrington/visualgate/internal/task"
	"github.com/jordanharrington/visualgate/internal/volc"
)

// Deps are the collaborators the routes are served by. Archive may be nil,
// which leaves the archive route unregistered.
type Deps struct {
	Generator generator
	Forwarder forwarder
	Relay     *relay.Relay
	Archive   archiver
	Logger    *slog.Logger
}

func NewRouter(d Deps) *mux.Router {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handler{
		gen:     d.Generator,
		forward: d.Forwarder,
		relay:   d.Relay,
		archive: d.Archive,
		log:     log,
	}

	m := mux.NewRouter().StrictSlash(true)
	m.Use(requestLogger(log))
	m.NotFoundHandler = h.routeError(http.StatusNotFound, "route not found")
	m.MethodNotAllowedHandler = h.routeError(http.StatusMethodNotAllowed, "method not allowed")
	m.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	// Without its own handlers a method mismatch under /api is a plain 404.
	api := m.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = m.NotFoundHandler
	api.MethodNotAllowedHandler = m.MethodNotAllowedHandler
	for path, kind := range map[string]task.Kind{
		"/text-to-video":  task.TextToVideo,
		"/image-to-video": task.ImageToVideo,
		"/text-to-image":  task.TextToImage,
		"/image-to-image": task.ImageToImage,
		"/image-edit":     task.ImageEdit,
	} {
		api.HandleFunc(path, h.handleSubmit(generation.Flows[kind])).Methods(http.MethodPost)
	}
	api.HandleFunc("/check-status", h.handleVideoStatus).Methods(http.MethodPost)
	api.HandleFunc("/image-edit-status", h.handleImageEditStatus).Methods(http.MethodPost)
	api.HandleFunc("/video-proxy", h.handleRelay(relay.VideoProfile)).Methods(http.MethodGet)
	api.HandleFunc("/image-proxy", h.handleRelay(relay.ImageProfile)).Methods(http.MethodGet)
	api.HandleFunc("/volcengine", h.handlePassthrough).Methods(http.MethodPost)
	if d.Archive != nil {
		api.HandleFunc("/archive/presign", h.handleArchive).Methods(http.MethodPost)
	}

	return m
}

// New wires the gateway from cfg: signer, remote caller, generation pipeline,
// media relay and, when a bucket is configured, the S3 archive presigner.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*mux.Router, error) {
	signer, err := volc.NewSigner(cfg.Volc.Credentials)
	if err != nil {
		return nil, err
	}
	log.Info("visual API signer ready", slog.Any("credentials", cfg.Volc.Credentials))

	callerOpts := []remote.Option{
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(log),
	}
	if cfg.Volc.Scheme != "https" {
		callerOpts = append(callerOpts, remote.WithBaseURL(cfg.Volc.Scheme+"://"+cfg.Volc.Host))
	}
	caller := remote.NewCaller(signer, callerOpts...)

	d := Deps{
		Generator: generation.NewPipeline(caller, generation.WithLogger(log)),
		Forwarder: caller,
		Relay: relay.New(cfg.RelayHeaderTimeout,
			relay.WithAllowedHosts(cfg.RelayAllowedHosts),
			relay.WithLogger(log)),
		Logger: log,
	}

	if cfg.Archive.Enabled() {
		s3, err := presign.NewS3Presigner(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive presigner: %w", err)
		}
		d.Archive = presign.NewArchive(s3, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.TTL, cfg.Archive.KMSKeyID)
		log.Info("archive presigning enabled", slog.String("bucket", cfg.Archive.Bucket))
	}

	return NewRouter(d), nil
}
