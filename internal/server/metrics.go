package server

import (
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardcrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Crop processing metrics
	cropRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_crop_requests_total",
			Help: "Total number of processed images",
		},
		[]string{"source", "status"}, // source: image, batch, pdf, websocket
	)

	cropProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardcrop_crop_processing_duration_seconds",
			Help:    "Per-image processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"source"},
	)

	cropFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_crop_failures_total",
			Help: "Failed images by failure kind",
		},
		[]string{"kind"},
	)

	cropsPerImage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardcrop_crops_per_image",
			Help:    "Number of cards cropped from one image",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	fallbackUsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_fallback_used_total",
			Help: "Crops produced by a fallback strategy",
		},
		[]string{"method"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardcrop_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardcrop_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardcrop_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeCrop records the outcome of one image run.
func observeCrop(src string, res *pipeline.Result, err error, d time.Duration) {
	cropProcessingDuration.WithLabelValues(src).Observe(d.Seconds())
	if err != nil {
		cropRequestsTotal.WithLabelValues(src, "error").Inc()
		cropFailuresTotal.WithLabelValues(pipeline.KindName(err)).Inc()
		return
	}
	cropRequestsTotal.WithLabelValues(src, "success").Inc()
	if res == nil {
		return
	}
	cropsPerImage.Observe(float64(len(res.Crops)))
	for _, c := range res.Crops {
		if isFallback(c.Method) {
			fallbackUsedTotal.WithLabelValues(c.Method).Inc()
		}
	}
}

func isFallback(method string) bool {
	switch method {
	case detector.FallbackBoundingRect, detector.FallbackLines, detector.FallbackHull, detector.FallbackLargest:
		return true
	}
	return false
}
