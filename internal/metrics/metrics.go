package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	AIRequests   *prometheus.CounterVec
	AIDuration   *prometheus.HistogramVec
	NoteRuns     *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = New()
		prometheus.MustRegister(global.AIRequests, global.AIDuration, global.NoteRuns, global.HTTPRequests)
	})
	return global
}

// New builds an unregistered set, used directly by tests.
func New() *Metrics {
	return &Metrics{
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regstudio",
			Name:      "ai_requests_total",
			Help:      "AI generation calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		AIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "regstudio",
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of AI generation calls that reached the network",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		NoteRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regstudio",
			Name:      "note_runs_total",
			Help:      "Note keeper feature runs by feature and outcome",
		}, []string{"feature", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regstudio",
			Name:      "http_requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
	}
}
