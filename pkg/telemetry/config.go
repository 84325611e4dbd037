package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config selects how the Rauzy tools log, trace, count and publish what
// they do to models and libraries.
type Config struct {
	ServiceName    string `validate:"required"`
	ServiceVersion string `validate:"required"`
	Environment    string

	Log     LogConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `validate:"oneof=trace debug info warn error fatal"`
	Format string `validate:"oneof=console json"`
	// Output is stdout, stderr or a file path logs are appended to.
	Output string `validate:"required"`
}

// TracingConfig configures the spans of loads, transforms and compares.
type TracingConfig struct {
	Enabled bool
	// Exporter is otlp (gRPC), stdout or none. With none spans are created
	// but never exported.
	Exporter     string  `validate:"oneof=otlp stdout none"`
	Endpoint     string  `validate:"required_if=Exporter otlp"`
	SamplingRate float64 `validate:"gte=0,lte=1"`
	Insecure     bool
}

// MetricsConfig configures the Prometheus collectors and their endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string `validate:"required_if=Enabled true"`
	Path          string `validate:"startswith=/"`
	Namespace     string `validate:"required"`
	// Buckets of the load and transform duration histograms, in seconds.
	Buckets []float64
}

// EventsConfig configures the event publisher.
type EventsConfig struct {
	Enabled bool
	// BufferSize bounds the queue of asynchronous publishing.
	BufferSize    int `validate:"gt=0"`
	FlushInterval time.Duration
	MaxBatchSize  int `validate:"gt=0"`
	// EnableAsync delivers events from a background goroutine. One-shot
	// commands turn it off so nothing is dropped at exit.
	EnableAsync bool
}

// DefaultConfig returns the configuration of a local run: console logs on
// stderr, no exported traces, metrics collected but not served until asked.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "rauzy",
		ServiceVersion: "dev",
		Environment:    "development",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:      true,
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "rauzy",
			// transforms of in-memory trees are fast, loads hit the disk
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    256,
			FlushInterval: time.Second,
			MaxBatchSize:  64,
			EnableAsync:   true,
		},
	}
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}
