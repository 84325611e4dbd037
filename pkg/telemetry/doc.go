// Package telemetry instruments the Rauzy tools: zerolog logging,
// OpenTelemetry spans, Prometheus metrics and an in-process event
// publisher, all driven by one Config.
//
// A command creates the telemetry once and stores it in its context:
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Logger.SetGlobal()
//	ctx = tel.WithContext(ctx)
//
// The modeling packages log through the zerolog/log global logger, which
// SetGlobal points at the configured one. Loggers scoped to a model are
// derived with Component, Model and Transform.
//
// The workspace wraps its operations with RecordLoad, RecordTransform and
// RecordCompare. Each one starts a span, observes a duration histogram,
// counts classified errors and publishes events. Without telemetry in the
// context they only run the wrapped function:
//
//	err := telemetry.RecordTransform(ctx, "car", "abstract", func(ctx context.Context) ([]string, error) {
//	    abst := root.AbstractToDepth(1)
//	    return model.RemovedRelations(root, abst), nil
//	})
//
// Metrics are registered on a private registry under the rauzy namespace:
//
//   - rauzy_documents_loaded_total{kind,format,status}
//   - rauzy_document_load_duration_seconds{kind}
//   - rauzy_transforms_executed_total{transform,status}
//   - rauzy_transform_duration_seconds{transform}
//   - rauzy_relations_removed_total{transform}
//   - rauzy_library_classes{kind}
//   - rauzy_model_objects{model}
//   - rauzy_policy_violations_total{policy,severity}
//   - rauzy_errors_by_kind_total{kind}
//
// ServeMetrics exposes them over HTTP until its context is done.
//
// Subscribers receive events filtered by FilterByLevel or FilterByType.
// The snapshot store subscribes a recorder that keeps them in the
// catalog.
package telemetry
