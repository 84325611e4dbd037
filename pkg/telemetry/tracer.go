package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// Span attributes.
var (
	AttrDocumentKind   = attribute.Key("document.kind")
	AttrDocumentPath   = attribute.Key("document.path")
	AttrDocumentFormat = attribute.Key("document.format")
	AttrModelName      = attribute.Key("model.name")
	AttrOtherModel     = attribute.Key("model.other")
	AttrTransform      = attribute.Key("transform")
	AttrDiffEntries    = attribute.Key("diff.entries")
)

// Tracer creates the spans of document loads, transforms and compares.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a tracer for cfg. A disabled tracer hands out spans
// that are never recorded.
func NewTracer(cfg TracingConfig, service, version, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		return &Tracer{provider: provider, tracer: provider.Tracer(service)}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		exporter, err = otlptracegrpc.New(context.Background(), grpcOpts...)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s trace exporter: %w", cfg.Exporter, err)
	}
	if exporter != nil {
		// commands are short-lived, spans are exported as they end
		opts = append(opts, sdktrace.WithSyncer(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return &Tracer{provider: provider, tracer: provider.Tracer(service)}, nil
}

// StartLoadSpan starts the span of reading a document of the given kind
// (model, library) from path.
func (t *Tracer) StartLoadSpan(ctx context.Context, kind, path, format string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, kind+".load", trace.WithAttributes(
		AttrDocumentKind.String(kind),
		AttrDocumentPath.String(path),
		AttrDocumentFormat.String(format),
	))
}

// StartTransformSpan starts the span of a tree transform of a model.
func (t *Tracer) StartTransformSpan(ctx context.Context, transform, modelName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "transform."+transform, trace.WithAttributes(
		AttrTransform.String(transform),
		AttrModelName.String(modelName),
	))
}

// StartCompareSpan starts the span of comparing two models.
func (t *Tracer) StartCompareSpan(ctx context.Context, modelName, other string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "model.compare", trace.WithAttributes(
		AttrModelName.String(modelName),
		AttrOtherModel.String(other),
	))
}

// EndSpan sets the status of span from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddRelationsRemovedEvent records the relations dropped by the
// relation-validity repair of a transform.
func AddRelationsRemovedEvent(span trace.Span, paths []string) {
	if len(paths) == 0 {
		return
	}
	span.AddEvent("relations.removed", trace.WithAttributes(
		attribute.StringSlice("relation.paths", paths),
		attribute.Int("relation.count", len(paths)),
	))
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
