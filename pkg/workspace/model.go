package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/config"
	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/telemetry"
)

// Model is a root object together with the class library it extends and
// the files they live in.
type Model struct {
	// Name identifies the model in logs, metrics and the snapshot store.
	Name string

	// Path is the model file.
	Path string

	// LibraryPath is the library file, relative to the directory of Path
	// or to the working directory when Path is empty.
	LibraryPath string

	Root    *model.Object
	Library *library.Library
}

// Option configures how models and libraries are read.
type Option func(*options)

type options struct {
	schemas        *config.SchemaRegistry
	cue            *config.CUEParser
	starlark       *config.StarlarkEvaluator
	input          map[string]interface{}
	defaultLibrary string
}

// WithSchemaValidation validates every decoded document against the
// registry's built-in schemas before it is built.
func WithSchemaValidation(registry *config.SchemaRegistry) Option {
	return func(o *options) {
		o.schemas = registry
	}
}

// WithCUEParser sets the parser used for .cue files.
func WithCUEParser(parser *config.CUEParser) Option {
	return func(o *options) {
		o.cue = parser
	}
}

// WithStarlark sets the evaluator used for .star scripts and the input
// values predeclared to them.
func WithStarlark(eval *config.StarlarkEvaluator, input map[string]interface{}) Option {
	return func(o *options) {
		o.starlark = eval
		o.input = input
	}
}

// WithDefaultLibrary names the library file, relative to the model file,
// used when the model document names none.
func WithDefaultLibrary(path string) Option {
	return func(o *options) {
		o.defaultLibrary = path
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cue == nil {
		o.cue = config.NewCUEParser()
	}
	if o.starlark == nil {
		o.starlark = config.NewStarlarkEvaluator(0)
	}
	return o
}

// New returns an empty model with an empty library.
func New(name string) *Model {
	return &Model{
		Name:    name,
		Root:    model.NewObject(),
		Library: library.New(),
	}
}

// NameFromPath derives a model name from its file name.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a model file. The format follows the extension: JSON, YAML,
// CUE or a Starlark script binding the global model. A library named by
// the root document is read relative to the model file and loaded before
// the tree is built, so every extends must name one of its classes.
func Load(ctx context.Context, path string, opts ...Option) (*Model, error) {
	o := newOptions(opts)
	m := &Model{
		Name:    NameFromPath(path),
		Path:    path,
		Library: library.New(),
	}
	format := document.FormatFromPath(path)

	err := telemetry.RecordLoad(ctx, "model", m.Name, path, string(format), func(ctx context.Context) (int, error) {
		doc, libDoc, err := o.decodeModel(ctx, path, format)
		if err != nil {
			return 0, err
		}

		if doc.Library == "" {
			doc.Library = o.defaultLibrary
		}
		if doc.Library != "" {
			m.LibraryPath = doc.Library
			lib, err := LoadLibrary(ctx, m.libraryFile(), opts...)
			if err != nil {
				return 0, err
			}
			m.Library = lib
		}
		if libDoc != nil {
			if err := m.Library.Load(libDoc); err != nil {
				return 0, fmt.Errorf("failed to load script library: %w", err)
			}
		}

		root, err := model.FromDocument(doc, m.Library)
		if err != nil {
			return 0, err
		}
		m.Root = root
		return countObjects(root), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetModelObjects(m.Name, countObjects(m.Root))
	}
	return m, nil
}

// decodeModel returns the root document of path and, for scripts, the
// library they build inline.
func (o *options) decodeModel(ctx context.Context, path string, format document.Format) (*document.Object, *document.Library, error) {
	var (
		doc    *document.Object
		libDoc *document.Library
		err    error
	)
	switch format {
	case document.FormatCUE:
		doc, err = o.cue.DecodeObject(ctx, path)
	case document.FormatStarlark:
		doc, libDoc, err = o.evaluateScript(ctx, path)
	default:
		doc, err = decodeFile(path, format, document.DecodeObject)
	}
	if err != nil {
		return nil, nil, err
	}

	if o.schemas != nil {
		if err := o.schemas.ValidateObject(ctx, doc); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if libDoc != nil {
			if err := o.schemas.ValidateLibrary(ctx, libDoc); err != nil {
				return nil, nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return doc, libDoc, nil
}

func (o *options) evaluateScript(ctx context.Context, path string) (*document.Object, *document.Library, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	res, err := o.starlark.Evaluate(ctx, string(script), o.input)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if res.Model == nil {
		return nil, nil, fmt.Errorf("%s: script does not bind the global %q", path, config.GlobalModel)
	}
	log.Debug().
		Str("script", path).
		Dur("duration", res.ExecutionTime).
		Msg("Model script evaluated")
	return res.Model, res.Library, nil
}

// LoadLibrary reads a library file (JSON, YAML or CUE).
func LoadLibrary(ctx context.Context, path string, opts ...Option) (*library.Library, error) {
	o := newOptions(opts)
	format := document.FormatFromPath(path)
	lib := library.New()

	err := telemetry.RecordLoad(ctx, "library", NameFromPath(path), path, string(format), func(ctx context.Context) (int, error) {
		var (
			doc *document.Library
			err error
		)
		switch format {
		case document.FormatCUE:
			doc, err = o.cue.DecodeLibrary(ctx, path)
		case document.FormatStarlark:
			return 0, fmt.Errorf("%s: libraries cannot be read from scripts, build them with the model", path)
		default:
			doc, err = decodeFile(path, format, document.DecodeLibrary)
		}
		if err != nil {
			return 0, err
		}
		if o.schemas != nil {
			if err := o.schemas.ValidateLibrary(ctx, doc); err != nil {
				return 0, fmt.Errorf("%s: %w", path, err)
			}
		}
		if err := lib.Load(doc); err != nil {
			return 0, err
		}
		return lib.Len(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", path, err)
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		objects, relations := len(lib.ObjectClasses()), len(lib.RelationClasses())
		tel.Metrics.SetLibraryClasses(objects, relations)
		_ = tel.Events.PublishLibraryLoaded(path, objects, relations)
	}
	return lib, nil
}

// Save writes the root document to Path, with its library reference set,
// and the library next to it. The encoding follows the extension of each
// file.
func (m *Model) Save(ctx context.Context, indent int) error {
	if m.Root == nil {
		return model.NewInvalidStateError("model has no root object", nil).
			WithName(m.Name).
			WithOperation("save")
	}
	if m.Path == "" {
		return model.NewInvalidArgumentError("model has no path", nil).
			WithName(m.Name).
			WithOperation("save")
	}
	hasLibrary := m.Library != nil && m.Library.Len() > 0
	if hasLibrary && m.LibraryPath == "" {
		return model.NewInvalidArgumentError("model library has no path", nil).
			WithName(m.Name).
			WithOperation("save")
	}

	doc := m.Root.Document()
	doc.Library = m.LibraryPath
	if err := writeFile(ctx, "model", m.Path, doc, indent); err != nil {
		return err
	}
	if hasLibrary {
		if err := SaveLibrary(ctx, m.Library, m.libraryFile(), indent); err != nil {
			return err
		}
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		_ = tel.Events.PublishModelSaved(m.Name, m.Path)
	}
	log.Debug().Str("model", m.Name).Str("path", m.Path).Msg("Model saved")
	return nil
}

// SaveAs writes the root document to path without touching the library
// file. The library reference is rewritten relative to the new location.
// m is updated to live at path.
func (m *Model) SaveAs(ctx context.Context, path string, indent int) error {
	if m.Root == nil {
		return model.NewInvalidStateError("model has no root object", nil).
			WithName(m.Name).
			WithOperation("save_as")
	}

	libraryPath := m.LibraryPath
	if libraryPath != "" {
		source := m.libraryFile()
		if rel, err := filepath.Rel(filepath.Dir(path), source); err == nil {
			libraryPath = filepath.ToSlash(rel)
		} else {
			libraryPath = source
		}
	}

	doc := m.Root.Document()
	doc.Library = libraryPath
	if err := writeFile(ctx, "model", path, doc, indent); err != nil {
		return err
	}
	m.Path = path
	m.LibraryPath = libraryPath

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		_ = tel.Events.PublishModelSaved(m.Name, path)
	}
	return nil
}

// SaveLibrary writes lib to path.
func SaveLibrary(ctx context.Context, lib *library.Library, path string, indent int) error {
	if lib == nil {
		return model.NewInvalidArgumentError("library must not be nil", nil).
			WithOperation("save_library")
	}
	return writeFile(ctx, "library", path, lib.Document(), indent)
}

// libraryFile resolves LibraryPath against the model directory.
func (m *Model) libraryFile() string {
	if filepath.IsAbs(m.LibraryPath) {
		return m.LibraryPath
	}
	return filepath.Join(filepath.Dir(m.Path), m.LibraryPath)
}

func decodeFile[T any](path string, format document.Format, decode func(r io.Reader, f document.Format) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := decode(f, format)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func writeFile(ctx context.Context, kind, path string, doc interface{}, indent int) error {
	format := document.FormatFromPath(path)
	var buf bytes.Buffer
	if err := document.Encode(&buf, doc, format, indent); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordDocumentSaved(kind, string(format))
	}
	return nil
}

// countObjects counts the objects below root.
func countObjects(root *model.Object) int {
	n := -1
	root.Walk(func(string, *model.Object) bool {
		n++
		return true
	})
	return n
}
