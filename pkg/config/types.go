package config

import (
	"time"

	"github.com/rauzy/rauzy/pkg/document"
)

// Settings holds the CLI configuration read from rauzy.yaml and RAUZY_*
// environment variables.
type Settings struct {
	// Environment names the deployment environment reported by telemetry.
	Environment string `mapstructure:"environment" validate:"required"`

	// Log configures structured logging.
	Log LogSettings `mapstructure:"log"`

	// Output controls how documents are written.
	Output OutputSettings `mapstructure:"output"`

	// Library is the default library file used when a model names none.
	Library string `mapstructure:"library"`

	// Store configures the snapshot catalog.
	Store StoreSettings `mapstructure:"store"`

	// Policy configures model linting.
	Policy PolicySettings `mapstructure:"policy"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsSettings `mapstructure:"metrics"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingSettings `mapstructure:"tracing"`

	// Starlark configures model-building scripts.
	Starlark StarlarkSettings `mapstructure:"starlark"`
}

// LogSettings configures structured logging.
type LogSettings struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn error"`

	// Format is the log format (console, json).
	Format string `mapstructure:"format" validate:"required,oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// OutputSettings controls document encoding.
type OutputSettings struct {
	// Format is the default encoding for written documents.
	Format string `mapstructure:"format" validate:"required,oneof=json yaml"`

	// Indent is the number of spaces per nesting level.
	Indent int `mapstructure:"indent" validate:"gte=0,lte=8"`
}

// StoreSettings configures the snapshot catalog.
type StoreSettings struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path" validate:"required"`
}

// PolicySettings configures model linting.
type PolicySettings struct {
	// Enabled turns policy evaluation on.
	Enabled bool `mapstructure:"enabled"`

	// Paths lists extra policy files or directories.
	Paths []string `mapstructure:"paths"`

	// Enable and Disable name policies to turn on or off whatever their
	// files say. Disable wins.
	Enable  []string `mapstructure:"enable"`
	Disable []string `mapstructure:"disable"`

	// Mode is advisory (report only) or enforcing (fail on errors).
	Mode string `mapstructure:"mode" validate:"required,oneof=advisory enforcing"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	// Enabled turns metrics collection on.
	Enabled bool `mapstructure:"enabled"`

	// ListenAddress is the address of the metrics HTTP server.
	ListenAddress string `mapstructure:"listen_address" validate:"required_if=Enabled true"`

	// Path is the HTTP path of the metrics endpoint.
	Path string `mapstructure:"path" validate:"required"`
}

// TracingSettings configures OpenTelemetry export.
type TracingSettings struct {
	// Enabled turns tracing on.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is otlp, stdout or none.
	Exporter string `mapstructure:"exporter" validate:"required,oneof=otlp stdout none"`

	// Endpoint is the OTLP collector address.
	Endpoint string `mapstructure:"endpoint"`

	// SamplingRate is the fraction of traces sampled.
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// StarlarkSettings configures model-building scripts.
type StarlarkSettings struct {
	// Timeout bounds script execution.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path of the error (e.g., "objects.wheel.properties").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// ParsedDocument is the result of compiling a CUE source.
type ParsedDocument struct {
	// Nature is the kind of document found.
	Nature document.Nature `json:"nature"`

	// Object is set when Nature is object.
	Object *document.Object `json:"object,omitempty"`

	// Library is set when Nature is library.
	Library *document.Library `json:"library,omitempty"`

	// SourceFiles are the CUE files that were compiled.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the document was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists compilation and schema errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the public globals of the script.
	Output map[string]interface{} `json:"output,omitempty"`

	// Model is the document bound to the global "model", if any.
	Model *document.Object `json:"model,omitempty"`

	// Library is the document bound to the global "library", if any.
	Library *document.Library `json:"library,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
