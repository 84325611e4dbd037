package telemetry

import (
	"context"
	"errors"
	"time"
)

// Telemetry bundles the logger, tracer, metrics and events of a run.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry validates cfg and creates every component.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext stores t and its logger in ctx. The logger is read back
// with zerolog.Ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext returns the telemetry stored in ctx, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown drains the events and flushes the spans. The metrics endpoint
// is stopped by the context given to ServeMetrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Events.Shutdown(ctx), t.Tracer.Shutdown(ctx))
}

// classified is implemented by errors that carry a kind and a code.
type classified interface {
	Classification() (kind, code string)
}

// RecordLoad instruments reading the document name of the given kind
// (model, library) from path. fn returns the number of objects it loaded.
func RecordLoad(ctx context.Context, kind, name, path, format string, fn func(ctx context.Context) (int, error)) error {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		_, err := fn(ctx)
		return err
	}

	spanCtx, span := tel.Tracer.StartLoadSpan(ctx, kind, path, format)
	start := time.Now()
	n, err := fn(spanCtx)
	duration := time.Since(start)
	EndSpan(span, err)

	if err != nil {
		tel.Metrics.RecordDocumentLoaded(kind, format, "failure", duration)
		tel.recordError(err)
		return err
	}

	tel.Metrics.RecordDocumentLoaded(kind, format, "success", duration)
	tel.Logger.Debug().
		Str("kind", kind).
		Str("name", name).
		Str("path", path).
		Int("objects", n).
		Dur("duration", duration).
		Msg("Document loaded")
	if kind == "model" {
		_ = tel.Events.PublishModelLoaded(name, path, n)
	}
	return nil
}

// RecordTransform instruments a tree transform of a model. fn returns the
// paths of the relations the transform dropped.
func RecordTransform(ctx context.Context, modelName, transform string, fn func(ctx context.Context) ([]string, error)) error {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		_, err := fn(ctx)
		return err
	}

	spanCtx, span := tel.Tracer.StartTransformSpan(ctx, transform, modelName)
	start := time.Now()
	removed, err := fn(spanCtx)
	duration := time.Since(start)

	if err != nil {
		EndSpan(span, err)
		tel.recordError(err)
		tel.Metrics.RecordTransform(transform, "failure", duration)
		_ = tel.Events.PublishTransformFailed(modelName, transform, err.Error())
		return err
	}

	AddRelationsRemovedEvent(span, removed)
	EndSpan(span, nil)
	tel.Metrics.RecordTransform(transform, "success", duration)
	tel.Metrics.RecordRelationsRemoved(transform, len(removed))
	for _, path := range removed {
		tel.Logger.Model(modelName).Transform(transform).Debug().
			Str("relation", path).
			Msg("Relation removed")
	}
	_ = tel.Events.PublishRelationsRemoved(modelName, transform, removed)
	_ = tel.Events.PublishTransformCompleted(modelName, transform, duration)
	return nil
}

// RecordCompare instruments comparing modelName with other. fn returns
// the number of differing entries.
func RecordCompare(ctx context.Context, modelName, other string, fn func(ctx context.Context) (int, error)) error {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		_, err := fn(ctx)
		return err
	}

	spanCtx, span := tel.Tracer.StartCompareSpan(ctx, modelName, other)
	start := time.Now()
	n, err := fn(spanCtx)
	duration := time.Since(start)
	if err != nil {
		EndSpan(span, err)
		tel.recordError(err)
		tel.Metrics.RecordTransform("compare", "failure", duration)
		return err
	}

	span.SetAttributes(AttrDiffEntries.Int(n))
	EndSpan(span, nil)
	tel.Metrics.RecordTransform("compare", "success", duration)
	tel.Logger.Model(modelName).Debug().
		Str("other", other).
		Int("entries", n).
		Msg("Models compared")
	return nil
}

func (t *Telemetry) recordError(err error) {
	var ce classified
	if errors.As(err, &ce) {
		kind, code := ce.Classification()
		t.Metrics.RecordError(kind, code)
		return
	}
	t.Metrics.RecordError("unknown", "")
}
