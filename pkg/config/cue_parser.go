package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/ordered"
)

// CUEParser compiles model and library documents written in CUE. The
// top-level value of a source is the document itself; sources without a
// nature field are objects.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
	}
}

// Parse compiles a CUE file or package directory. Compilation and schema
// errors are reported in the result, not as an error; the error return is
// reserved for unreadable sources.
func (cp *CUEParser) Parse(ctx context.Context, source string) (*ParsedDocument, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
	}

	var (
		val   cue.Value
		files []string
		errs  []ValidationError
	)
	if info.IsDir() {
		val, files, errs = cp.loadDirectory(source)
	} else {
		content, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", source, err)
		}
		val = cp.ctx.CompileBytes(content, cue.Filename(source))
		files = []string{source}
		if err := val.Err(); err != nil {
			errs = cp.convertCUEErrors(err)
		}
	}

	if len(errs) > 0 {
		return &ParsedDocument{
			SourceFiles: files,
			ParsedAt:    time.Now(),
			Errors:      errs,
		}, nil
	}
	return cp.extractDocument(ctx, val, files), nil
}

// ParseInline compiles inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedDocument, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return &ParsedDocument{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}
	return cp.extractDocument(ctx, val, []string{"inline"}), nil
}

// DecodeObject compiles source and returns its object document. Any
// compilation or schema error fails the call.
func (cp *CUEParser) DecodeObject(ctx context.Context, source string) (*document.Object, error) {
	parsed, err := cp.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := parsed.Err(); err != nil {
		return nil, err
	}
	if parsed.Object == nil {
		return nil, fmt.Errorf("%s: expected nature %q, got %q", source, document.NatureObject, parsed.Nature)
	}
	return parsed.Object, nil
}

// DecodeLibrary compiles source and returns its library document.
func (cp *CUEParser) DecodeLibrary(ctx context.Context, source string) (*document.Library, error) {
	parsed, err := cp.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := parsed.Err(); err != nil {
		return nil, err
	}
	if parsed.Library == nil {
		return nil, fmt.Errorf("%s: expected nature %q, got %q", source, document.NatureLibrary, parsed.Nature)
	}
	return parsed.Library, nil
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// Err summarizes the errors of a parse, or returns nil.
func (pd *ParsedDocument) Err() error {
	if len(pd.Errors) == 0 {
		return nil
	}
	first := pd.Errors[0]
	loc := first.File
	if first.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", first.File, first.Line, first.Column)
	}
	if len(pd.Errors) == 1 {
		return fmt.Errorf("%s: %s", loc, first.Message)
	}
	return fmt.Errorf("%s: %s (and %d more errors)", loc, first.Message, len(pd.Errors)-1)
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}
	return val, files, nil
}

// extractDocument validates the compiled value against the schema of its
// nature and converts it to a document.
func (cp *CUEParser) extractDocument(ctx context.Context, val cue.Value, files []string) *ParsedDocument {
	parsed := &ParsedDocument{
		Nature:      document.NatureObject,
		SourceFiles: files,
		ParsedAt:    time.Now(),
	}

	if err := val.Validate(cue.Concrete(true)); err != nil {
		parsed.Errors = cp.convertCUEErrors(err)
		return parsed
	}

	if nature := val.LookupPath(cue.ParsePath("nature")); nature.Exists() {
		s, err := nature.String()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "nature",
				Message:  err.Error(),
				Severity: "error",
			})
			return parsed
		}
		parsed.Nature = document.Nature(s)
	}

	generic, err := toGeneric(val)
	if err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Message:  err.Error(),
			Severity: "error",
		})
		return parsed
	}

	var schema string
	switch parsed.Nature {
	case document.NatureObject:
		schema = SchemaObject
		parsed.Object, err = document.ParseObject(generic)
	case document.NatureLibrary:
		schema = SchemaLibrary
		parsed.Library, err = document.ParseLibrary(generic)
	default:
		err = fmt.Errorf("unsupported document nature %q", parsed.Nature)
	}
	if err == nil {
		err = cp.schemaRegistry.ValidateAgainstSchema(ctx, schema, generic)
	}
	if err != nil {
		parsed.Object, parsed.Library = nil, nil
		parsed.Errors = append(parsed.Errors, ValidationError{
			File:     firstFile(files),
			Message:  err.Error(),
			Severity: "error",
		})
		return parsed
	}

	log.Debug().
		Str("nature", string(parsed.Nature)).
		Strs("files", files).
		Msg("CUE document parsed")
	return parsed
}

// toGeneric converts a concrete CUE value to generic Go values, keeping
// struct fields in declaration order.
func toGeneric(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		m := ordered.NewMap[any]()
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			field, err := toGeneric(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Selector(), err)
			}
			m.Set(iter.Selector().Unquoted(), field)
		}
		return m, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		var list []any
		for iter.Next() {
			item, err := toGeneric(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case cue.NullKind:
		return nil, nil
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	default:
		return nil, fmt.Errorf("unsupported CUE value of kind %s", v.Kind())
	}
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

func firstFile(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return files[0]
}
