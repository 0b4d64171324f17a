// Package metrics wraps prometheus/client_golang for the allocation
// core's ambient observability surface (spec §9): nonce-race retries,
// validation failures by kind, and admission latency. It is not a spec
// feature and is carried regardless of any feature-level non-goal.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the typed collectors the allocation core reports
// against a private prometheus.Registry, mirroring the way the teacher's
// components hold their own collaborators rather than reaching into a
// global default registry.
type Registry struct {
	registry *prometheus.Registry

	nonceRetries       prometheus.Counter
	validationFailures *prometheus.CounterVec
	admissionDuration  prometheus.Histogram
	admissionsTotal    *prometheus.CounterVec
}

// New constructs a Registry with every collector registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		nonceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocator_nonce_generate_retries_total",
			Help: "Number of times GenerateNext was retried after a nonce-race (spec §4.3, §4.6 step 5).",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocator_validation_failures_total",
			Help: "Validation pipeline rejections, partitioned by failure kind (spec §7 taxonomy).",
		}, []string{"kind"}),
		admissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocator_admission_duration_seconds",
			Help:    "Wall-clock duration of Service.Admit, from validation through commit.",
			Buckets: prometheus.DefBuckets,
		}),
		admissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocator_admissions_total",
			Help: "Completed admission attempts, partitioned by outcome (accepted, rejected).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(r.nonceRetries, r.validationFailures, r.admissionDuration, r.admissionsTotal)
	return r
}

// ObserveNonceRetry records one GenerateNext retry after a nonce race.
func (r *Registry) ObserveNonceRetry() {
	r.nonceRetries.Inc()
}

// ObserveValidationFailure records a validation rejection of the given kind.
func (r *Registry) ObserveValidationFailure(kind string) {
	r.validationFailures.WithLabelValues(kind).Inc()
}

// ObserveAdmission records the duration and outcome of one Admit call.
// outcome is "accepted" or "rejected".
func (r *Registry) ObserveAdmission(d time.Duration, outcome string) {
	r.admissionDuration.Observe(d.Seconds())
	r.admissionsTotal.WithLabelValues(outcome).Inc()
}

// Timer returns a func that, when called, reports the elapsed time since
// Timer was invoked as an admission observation. Intended for:
//
//	stop := registry.Timer()
//	defer func() { stop(outcome) }()
func (r *Registry) Timer() func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		r.ObserveAdmission(time.Since(start), outcome)
	}
}

// Server serves the /metrics endpoint for this Registry on addr, in the
// same "own tiny http.Server, own logger" shape as the teacher's other
// long-running components.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// NewServer builds a metrics Server bound to addr. It does not listen
// until Start is called.
func NewServer(addr string, registry *Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[Metrics] ", log.LstdFlags)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.registry, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Start runs the metrics HTTP server until the process exits or Shutdown
// is called; errors other than http.ErrServerClosed are logged.
func (s *Server) Start() {
	s.logger.Printf("metrics listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("metrics server stopped: %v", err)
	}
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
