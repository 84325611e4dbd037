package telemetry

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a zerolog logger scoped with the fields the modeling tools
// attach: component, model and transform.
type Logger struct {
	zerolog.Logger
	level zerolog.Level
}

// NewLogger creates the logger described by cfg.
func NewLogger(cfg LogConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out, err := openLogOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return &Logger{
		Logger: zerolog.New(out).Level(level).With().Timestamp().Logger(),
		level:  level,
	}, nil
}

func openLogOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "", "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Component returns a logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return l.with("component", name)
}

// Model returns a logger tagged with a model name.
func (l *Logger) Model(name string) *Logger {
	return l.with("model", name)
}

// Transform returns a logger tagged with a transform name.
func (l *Logger) Transform(name string) *Logger {
	return l.with("transform", name)
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{
		Logger: l.With().Str(key, value).Logger(),
		level:  l.level,
	}
}

// SetGlobal makes l the logger behind the zerolog/log package, which the
// modeling packages log through.
func (l *Logger) SetGlobal() {
	log.Logger = l.Logger
	zerolog.SetGlobalLevel(l.level)
}
