package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus metrics for recording sessions and provider calls
type Metrics struct {
	Registry *prometheus.Registry

	// Session metrics
	SessionsStarted  prometheus.Counter
	StateTransitions *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Chunk metrics
	ChunksAppended   prometheus.Counter
	ChunkBytes       prometheus.Counter
	EmptySegments    prometheus.Counter
	StopFlushTimeout prometheus.Counter

	// Live recognition metrics
	RecognizerRestarts prometheus.Counter
	RecognizerWarnings prometheus.Counter

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
}

// New creates all metrics on a registry of their own
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moment_session_transitions_total",
			Help: "Session state transitions by target state",
		}, []string{"state"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "moment_recording_duration_seconds",
			Help:    "Duration of recordings from start to stop",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~42 minutes
		}),

		ChunksAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_chunks_appended_total",
			Help: "Total number of audio segments appended",
		}),
		ChunkBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_chunk_bytes_total",
			Help: "Total bytes of audio appended",
		}),
		EmptySegments: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_empty_segments_total",
			Help: "Zero-length segments discarded",
		}),
		StopFlushTimeout: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_stop_flush_timeouts_total",
			Help: "Stops that finalized before the capture confirmed its last segment",
		}),

		RecognizerRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_recognizer_restarts_total",
			Help: "Live recognizer restarts after transient conditions",
		}),
		RecognizerWarnings: f.NewCounter(prometheus.CounterOpts{
			Name: "moment_recognizer_warnings_total",
			Help: "Live recognizer failures surfaced as session warnings",
		}),

		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moment_provider_requests_total",
			Help: "Provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moment_provider_request_duration_seconds",
			Help:    "Provider call latency",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider"}),
	}
}

// ObserveProvider records one provider call. An empty outcome means success.
func (m *Metrics) ObserveProvider(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Serve exposes the registry on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
