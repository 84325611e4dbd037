package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rauzy/rauzy/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Route the modeling packages through the configured logger
	tel.Logger.SetGlobal()

	ctx := tel.WithContext(context.Background())
	zerolog.Ctx(ctx).Info().Msg("rauzy started")
}

// Example_structuredLogging demonstrates model-scoped loggers.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig()
	cfg.Log.Level = "debug"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.Component("workspace").Model("car").Transform("flatten")

	logger.Debug().Msg("Flattening model")
	logger.Error().Err(fmt.Errorf("object not found")).Msg("Flatten failed")
}

// Example_transformInstrumentation instruments a tree transform.
func Example_transformInstrumentation() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Println(event.Type, event.Subject)
	}, telemetry.FilterByType(telemetry.EventTypeRelationsRemoved))

	ctx := tel.WithContext(context.Background())
	_ = telemetry.RecordTransform(ctx, "car", "abstract", func(ctx context.Context) ([]string, error) {
		return []string{"parked"}, nil
	})
	// Output: relations.removed abstract
}

// Example_eventFiltering demonstrates subscriber filters.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Println(event.Type, event.Level)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = tel.Events.PublishTransformCompleted("car", "flatten", time.Millisecond)
	_ = tel.Events.PublishTransformFailed("car", "flatten", "class Wheel not found")
	// Output: transform.failed error
}
