package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/config"
	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/telemetry"
	"github.com/rauzy/rauzy/pkg/workspace"
)

// session carries what every command needs: the settings, the telemetry
// stack bound to ctx and the command's output stream.
type session struct {
	ctx      context.Context
	settings *config.Settings
	tel      *telemetry.Telemetry
	schemas  *config.SchemaRegistry
	out      io.Writer
}

// openSession reads the settings and starts telemetry. tweak, when set,
// adjusts the settings before telemetry is created.
func openSession(cmd *cobra.Command, tweak func(*config.Settings)) (*session, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		settings.Log.Level = "debug"
	}
	if tweak != nil {
		tweak(settings)
	}

	cfg := settings.TelemetryConfig(buildVersion)
	// commands exit right after their work, events must not be dropped
	cfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	tel.Logger.SetGlobal()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &session{
		ctx:      tel.WithContext(ctx),
		settings: settings,
		tel:      tel,
		schemas:  config.NewSchemaRegistry(),
		out:      cmd.OutOrStdout(),
	}, nil
}

// Close flushes telemetry.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

func (s *session) options() []workspace.Option {
	return []workspace.Option{
		workspace.WithSchemaValidation(s.schemas),
		workspace.WithStarlark(config.NewStarlarkEvaluator(s.settings.Starlark.Timeout), nil),
		workspace.WithDefaultLibrary(s.settings.Library),
	}
}

func (s *session) loadModel(path string) (*workspace.Model, error) {
	return workspace.Load(s.ctx, path, s.options()...)
}

func (s *session) loadLibrary(path string) (*library.Library, error) {
	return workspace.LoadLibrary(s.ctx, path, s.options()...)
}

func (s *session) indent() int {
	return s.settings.Output.Indent
}

// format is the encoding used on standard output: --json wins over
// --format, which wins over the settings.
func (s *session) format() (document.Format, error) {
	if jsonOutput {
		return document.FormatJSON, nil
	}
	name := outputFormat
	if name == "" {
		name = s.settings.Output.Format
	}
	return document.ParseFormat(name)
}

// writeModel saves m to out, or prints its root document when out is
// empty.
func (s *session) writeModel(m *workspace.Model, out string) error {
	if out != "" {
		if err := m.SaveAs(s.ctx, out, s.indent()); err != nil {
			return err
		}
		log.Info().Str("model", m.Name).Str("path", out).Msg("Model written")
		return nil
	}
	doc := m.Root.Document()
	doc.Library = m.LibraryPath
	return s.writeDocument(doc)
}

func (s *session) writeDocument(doc interface{}) error {
	format, err := s.format()
	if err != nil {
		return err
	}
	return document.Encode(s.out, doc, format, s.indent())
}

// printJSON writes v as indented JSON, for --json output of reports.
func (s *session) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run opens a session, calls fn and closes the session.
func run(cmd *cobra.Command, tweak func(*config.Settings), fn func(s *session) error) error {
	s, err := openSession(cmd, tweak)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
