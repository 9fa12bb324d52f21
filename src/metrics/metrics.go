// Package metrics records completion and apply outcomes for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	completions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	applied     *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specgen",
			Name:      "completions_total",
			Help:      "Chat completions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "specgen",
			Name:      "completion_duration_seconds",
			Help:      "Chat completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"operation"}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specgen",
			Name:      "files_applied_total",
			Help:      "Generated files written to the workspace by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.completions, r.latency, r.applied)
	return r
}

// Completion records one finished completion call.
func (r *Recorder) Completion(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.completions.WithLabelValues(operation, outcome).Inc()
	r.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Applied records one apply attempt.
func (r *Recorder) Applied(ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.applied.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
