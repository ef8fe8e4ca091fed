package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// cropper defines the methods needed by the server from a pipeline.
type cropper interface {
	ProcessImage(ctx context.Context, id string, img image.Image) (*pipeline.Result, error)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       cropper
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	rateLimiter    *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	OverlayEnabled bool
	RateLimit      RateLimitConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CropResponse is the JSON body of a crop request. Images holds base64 PNG
// crops when the client asked for them.
type CropResponse struct {
	Success   bool              `json:"success"`
	RequestID string            `json:"request_id,omitempty"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Records   []pipeline.Record `json:"records"`
	Images    []string          `json:"images,omitempty"`
}

// NewServer wraps a built pipeline. The server owns pl and closes it.
func NewServer(config Config, pl cropper) *Server {
	s := &Server{
		pipeline:       pl,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		overlayEnabled: config.OverlayEnabled,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiterFromConfig(config.RateLimit)
	}
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler, false))
	mux.HandleFunc("/version", s.wrap(s.versionHandler, false))
	mux.HandleFunc("/crop", s.wrap(s.cropHandler, true))
	mux.HandleFunc("/crop/batch", s.wrap(s.batchCropHandler, true))
	mux.HandleFunc("/crop/pdf", s.wrap(s.pdfCropHandler, true))
	mux.HandleFunc("/ws", s.requestIDMiddleware(s.rateLimitMiddleware(s.cropWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// wrap applies the common middleware chain. Limited routes count against the
// client's rate limit and quota.
func (s *Server) wrap(h http.HandlerFunc, limited bool) http.HandlerFunc {
	if limited {
		h = s.rateLimitMiddleware(h)
	}
	return s.corsMiddleware(s.requestIDMiddleware(h))
}

// requestContext bounds a request by the configured processing timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}
