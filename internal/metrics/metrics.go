package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache outcomes of a render.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheBypass   = "bypass"
	CacheDisabled = "disabled"
)

var (
	renders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "confprogram",
			Name:      "renders_total",
			Help:      "Program renders by format, variant and cache outcome",
		},
		[]string{"format", "variant", "cache"},
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "confprogram",
			Name:      "render_duration_seconds",
			Help:      "Time spent building and serializing a program",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"format"},
	)

	renderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "confprogram",
			Name:      "render_errors_total",
			Help:      "Failed program renders by format",
		},
		[]string{"format"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "confprogram",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
)

// Variant names the pending flag of a render.
func Variant(pending bool) string {
	if pending {
		return "pending"
	}
	return "public"
}

// TrackRender counts one render and, unless it was served from cache,
// its duration.
func TrackRender(format string, pending bool, cache string, d time.Duration) {
	renders.WithLabelValues(format, Variant(pending), cache).Inc()
	if cache != CacheHit {
		renderDuration.WithLabelValues(format).Observe(d.Seconds())
	}
}

func TrackRenderError(format string) {
	renderErrors.WithLabelValues(format).Inc()
}

func TrackRequest(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}
