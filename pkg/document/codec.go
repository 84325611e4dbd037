package document

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a text encoding for documents.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatCUE is only readable; CUE files are compiled by pkg/config.
	FormatCUE Format = "cue"
	// FormatStarlark marks model-building scripts evaluated by pkg/config.
	FormatStarlark Format = "star"
)

// FormatFromPath guesses the format from a file extension. Unknown
// extensions default to JSON, the historical model file encoding.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	case ".star":
		return FormatStarlark
	default:
		return FormatJSON
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (must be 'json' or 'yaml')", name)
	}
}

// DecodeObject reads an object document.
func DecodeObject(r io.Reader, format Format) (*Object, error) {
	doc := &Object{}
	if err := decode(r, format, doc); err != nil {
		return nil, err
	}
	if doc.Nature == "" {
		doc.Nature = NatureObject
	}
	if doc.Nature != NatureObject {
		return nil, fmt.Errorf("expected nature %q, got %q", NatureObject, doc.Nature)
	}
	return doc, nil
}

// DecodeLibrary reads a library document.
func DecodeLibrary(r io.Reader, format Format) (*Library, error) {
	doc := &Library{}
	if err := decode(r, format, doc); err != nil {
		return nil, err
	}
	if doc.Nature != NatureLibrary {
		return nil, fmt.Errorf("not a library document (nature %q)", doc.Nature)
	}
	return doc, nil
}

func decode(r io.Reader, format Format, out interface{}) error {
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(out); err != nil {
			return fmt.Errorf("failed to decode JSON document: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(out); err != nil {
			return fmt.Errorf("failed to decode YAML document: %w", err)
		}
	default:
		return fmt.Errorf("format %s cannot be decoded directly", format)
	}
	return nil
}

// Encode writes v (an *Object, *Relation or *Library document) in the
// given format. indent is the number of spaces per level.
func Encode(w io.Writer, v interface{}, format Format, indent int) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", strings.Repeat(" ", indent))
		if err != nil {
			return fmt.Errorf("failed to encode JSON document: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if indent < 2 {
			indent = 2
		}
		enc.SetIndent(indent)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML document: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s cannot be encoded", format)
	}
}
