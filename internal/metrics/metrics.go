// Package metrics exposes Prometheus collectors for submissions and the
// generation worker.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes, used as the "outcome" label.
const (
	OutcomeAccepted     = "accepted"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeRateLimited  = "rate_limited"
	OutcomeNoCredit     = "no_credit"
	OutcomeError        = "error"
)

// Collector groups the service metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	jobLatency  prometheus.Histogram
	credits     prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_submissions_total",
			Help: "Generation submissions by outcome",
		}, []string{"outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_jobs_finished_total",
			Help: "Jobs finished by the worker, by final status",
		}, []string{"status"}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_job_duration_seconds",
			Help:    "Time the worker spent generating a job",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studio_credits_granted_total",
			Help: "Credits granted through billing events",
		}),
	}
	c.registry.MustRegister(
		c.submissions,
		c.jobs,
		c.jobLatency,
		c.credits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordSubmission counts one submission with the given outcome.
func (c *Collector) RecordSubmission(outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordJob counts a finished job and observes how long it took.
func (c *Collector) RecordJob(status string, seconds float64) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(status).Inc()
	c.jobLatency.Observe(seconds)
}

// RecordCredits counts credits granted by a billing event.
func (c *Collector) RecordCredits(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.credits.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler at /metrics on ln until ctx is done. It is used by
// processes that have no API router of their own, such as the worker.
func (c *Collector) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
