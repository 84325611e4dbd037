package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for model loads and transforms.
type Metrics struct {
	config MetricsConfig

	// Document metrics
	documentsLoaded *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	documentsSaved  *prometheus.CounterVec

	// Transform metrics
	transformsExecuted *prometheus.CounterVec
	transformDuration  *prometheus.HistogramVec
	relationsRemoved   *prometheus.CounterVec

	// Library and model metrics
	libraryClasses *prometheus.GaugeVec
	modelObjects   *prometheus.GaugeVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Store metrics
	snapshotsSaved *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Document metrics
		documentsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_loaded_total",
				Help:      "Total number of model and library documents loaded",
			},
			[]string{"kind", "format", "status"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_load_duration_seconds",
				Help:      "Duration of document loads in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		documentsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_saved_total",
				Help:      "Total number of model and library documents written",
			},
			[]string{"kind", "format"},
		),

		// Transform metrics
		transformsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transforms_executed_total",
				Help:      "Total number of tree transforms executed",
			},
			[]string{"transform", "status"},
		),
		transformDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Duration of tree transforms in seconds",
				Buckets:   buckets,
			},
			[]string{"transform"},
		),
		relationsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relations_removed_total",
				Help:      "Total number of relations removed by relation-validity repair",
			},
			[]string{"transform"},
		),

		// Library and model metrics
		libraryClasses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "library_classes",
				Help:      "Number of classes in the loaded library",
			},
			[]string{"kind"},
		),
		modelObjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_objects",
				Help:      "Number of objects in a loaded model",
			},
			[]string{"model"},
		),

		// Policy metrics
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations found in models",
			},
			[]string{"policy", "severity"},
		),

		// Store metrics
		snapshotsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_saved_total",
				Help:      "Total number of snapshots written to the catalog",
			},
			[]string{"kind"},
		),

		// Error metrics
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of modeling errors by kind",
			},
			[]string{"kind"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of modeling errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.documentsLoaded,
		m.loadDuration,
		m.documentsSaved,
		m.transformsExecuted,
		m.transformDuration,
		m.relationsRemoved,
		m.libraryClasses,
		m.modelObjects,
		m.policyViolations,
		m.snapshotsSaved,
		m.errorsByKind,
		m.errorsByCode,
	)

	return m, nil
}

// Document Metrics

// RecordDocumentLoaded records a document load with its outcome and duration.
func (m *Metrics) RecordDocumentLoaded(kind, format, status string, duration time.Duration) {
	if m.documentsLoaded == nil {
		return
	}
	m.documentsLoaded.WithLabelValues(kind, format, status).Inc()
	m.loadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDocumentSaved records a written document.
func (m *Metrics) RecordDocumentSaved(kind, format string) {
	if m.documentsSaved == nil {
		return
	}
	m.documentsSaved.WithLabelValues(kind, format).Inc()
}

// Transform Metrics

// RecordTransform records the execution of a tree transform.
func (m *Metrics) RecordTransform(transform, status string, duration time.Duration) {
	if m.transformsExecuted == nil {
		return
	}
	m.transformsExecuted.WithLabelValues(transform, status).Inc()
	m.transformDuration.WithLabelValues(transform).Observe(duration.Seconds())
}

// RecordRelationsRemoved counts relations dropped by a transform's repair.
func (m *Metrics) RecordRelationsRemoved(transform string, count int) {
	if m.relationsRemoved == nil || count == 0 {
		return
	}
	m.relationsRemoved.WithLabelValues(transform).Add(float64(count))
}

// Library and Model Metrics

// SetLibraryClasses sets the class counts of the loaded library.
func (m *Metrics) SetLibraryClasses(objectClasses, relationClasses int) {
	if m.libraryClasses == nil {
		return
	}
	m.libraryClasses.WithLabelValues("objects").Set(float64(objectClasses))
	m.libraryClasses.WithLabelValues("relations").Set(float64(relationClasses))
}

// SetModelObjects sets the number of objects in a model.
func (m *Metrics) SetModelObjects(model string, count int) {
	if m.modelObjects == nil {
		return
	}
	m.modelObjects.WithLabelValues(model).Set(float64(count))
}

// Policy Metrics

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Store Metrics

// RecordSnapshotSaved records a snapshot written to the catalog.
func (m *Metrics) RecordSnapshotSaved(kind string) {
	if m.snapshotsSaved == nil {
		return
	}
	m.snapshotsSaved.WithLabelValues(kind).Inc()
}

// Error Metrics

// RecordError records an error by kind and optionally by code.
func (m *Metrics) RecordError(kind, code string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
	if code != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(code).Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ServeMetrics serves the metrics endpoint until ctx is done.
func (m *Metrics) ServeMetrics(ctx context.Context) error {
	if !m.config.Enabled {
		return fmt.Errorf("metrics are disabled")
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
