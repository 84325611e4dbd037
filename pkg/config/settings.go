package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rauzy/rauzy/pkg/telemetry"
)

// EnvPrefix prefixes environment overrides: log.level is read from
// RAUZY_LOG_LEVEL.
const EnvPrefix = "RAUZY"

// LoadSettings reads the settings file, applies environment overrides and
// validates the result. An empty path searches rauzy.yaml in the working
// directory and then in $HOME/.config/rauzy; a missing file is not an
// error.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rauzy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "rauzy"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := validator.New().Struct(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// DefaultSettings returns the settings used when no file or environment
// override is present.
func DefaultSettings() *Settings {
	settings := &Settings{}
	v := viper.New()
	setDefaults(v)
	// defaults only hold plain values, decoding cannot fail
	_ = v.Unmarshal(settings)
	return settings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.indent", 4)
	v.SetDefault("library", "")
	v.SetDefault("store.path", "rauzy.db")
	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.paths", []string{})
	v.SetDefault("policy.enable", []string{})
	v.SetDefault("policy.disable", []string{})
	v.SetDefault("policy.mode", "advisory")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", ":9090")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("starlark.timeout", 30*time.Second)
}

// TelemetryConfig maps the settings onto a telemetry configuration.
func (s *Settings) TelemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = s.Environment

	cfg.Log = telemetry.LogConfig{
		Level:  s.Log.Level,
		Format: s.Log.Format,
		Output: s.Log.Output,
	}

	cfg.Tracing.Enabled = s.Tracing.Enabled && s.Tracing.Exporter != "none"
	cfg.Tracing.Exporter = "none"
	if cfg.Tracing.Enabled {
		cfg.Tracing.Exporter = s.Tracing.Exporter
		cfg.Tracing.Endpoint = s.Tracing.Endpoint
	}
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate

	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.ListenAddress = s.Metrics.ListenAddress
	cfg.Metrics.Path = s.Metrics.Path
	return cfg
}
