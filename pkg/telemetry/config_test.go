package telemetry

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "otlp without endpoint",
			modify:  func(c *Config) { c.Tracing.Exporter = "otlp" },
			wantErr: true,
		},
		{
			name: "otlp with endpoint",
			modify: func(c *Config) {
				c.Tracing.Exporter = "otlp"
				c.Tracing.Endpoint = "localhost:4317"
			},
		},
		{
			name:    "sampling rate above one",
			modify:  func(c *Config) { c.Tracing.SamplingRate = 1.5 },
			wantErr: true,
		},
		{
			name:    "metrics enabled without address",
			modify:  func(c *Config) { c.Metrics.ListenAddress = "" },
			wantErr: true,
		},
		{
			name: "metrics disabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.ListenAddress = ""
			},
		},
		{
			name:    "relative metrics path",
			modify:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: true,
		},
		{
			name:    "empty event buffer",
			modify:  func(c *Config) { c.Events.BufferSize = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := logger.GetLevel().String(); got != "warn" {
		t.Errorf("expected warn level, got %s", got)
	}
	if got := logger.Model("car").Transform("flatten").GetLevel().String(); got != "warn" {
		t.Errorf("expected scoped logger to keep the level, got %s", got)
	}

	if _, err := NewLogger(LogConfig{Level: "loud", Format: "json", Output: "stderr"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
