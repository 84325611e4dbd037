package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rauzy/rauzy/pkg/document"
)

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		errCount  int
		checkFunc func(*testing.T, *ParsedDocument)
	}{
		{
			name: "object with children in declaration order",
			content: `
library: "vehicles.json"
objects: {
	zeta: {extends: "Wheel"}
	alpha: {properties: {size: "17", hub: null}}
}
relations: axle: {
	from: ["zeta"]
	to: ["alpha"]
	directional: true
}
`,
			checkFunc: func(t *testing.T, pd *ParsedDocument) {
				if pd.Nature != document.NatureObject || pd.Object == nil {
					t.Fatalf("expected object document, got nature %q", pd.Nature)
				}
				doc := pd.Object
				if doc.Library != "vehicles.json" {
					t.Errorf("expected library vehicles.json, got %q", doc.Library)
				}
				if got := strings.Join(doc.Objects.Keys(), ","); got != "zeta,alpha" {
					t.Errorf("expected zeta,alpha, got %s", got)
				}
				alpha, _ := doc.Objects.Get("alpha")
				hub, ok := alpha.Properties.Get("hub")
				if !ok || hub != nil {
					t.Error("expected null property to be the object marker")
				}
				axle, _ := doc.Relations.Get("axle")
				if axle.Directional == nil || !*axle.Directional {
					t.Error("expected directional axle")
				}
			},
		},
		{
			name: "library document",
			content: `
nature: "library"
objects: {
	Wheel: properties: size: "17"
	Car: objects: front: extends: "Wheel"
}
relations: Linked: directional: false
`,
			checkFunc: func(t *testing.T, pd *ParsedDocument) {
				if pd.Library == nil {
					t.Fatal("expected library document")
				}
				if got := strings.Join(pd.Library.Objects.Keys(), ","); got != "Wheel,Car" {
					t.Errorf("expected Wheel,Car, got %s", got)
				}
			},
		},
		{
			name: "CUE expressions are evaluated",
			content: `
_size: "1" + "8"
objects: {
	for i in ["a", "b"] {
		"wheel_\(i)": properties: size: _size
	}
}
`,
			checkFunc: func(t *testing.T, pd *ParsedDocument) {
				w, ok := pd.Object.Objects.Get("wheel_b")
				if !ok {
					t.Fatal("expected generated wheel_b")
				}
				size, _ := w.Properties.Get("size")
				if size == nil || *size != "18" {
					t.Errorf("expected size 18, got %v", size)
				}
			},
		},
		{
			name: "invalid CUE syntax",
			content: `
objects: {
	car: {
`,
			errCount: 1,
		},
		{
			name: "numeric property",
			content: `
properties: size: 18
`,
			errCount: 1,
		},
		{
			name: "unknown field",
			content: `
children: car: {}
`,
			errCount: 1,
		},
		{
			name: "unsupported nature",
			content: `
nature: "relation"
`,
			errCount: 1,
		},
		{
			name: "incomplete value",
			content: `
extends: string
`,
			errCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd, err := parser.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.errCount > 0 {
				if len(pd.Errors) < tt.errCount {
					t.Errorf("expected at least %d errors, got %d", tt.errCount, len(pd.Errors))
				}
				if pd.Err() == nil {
					t.Error("expected Err to summarize the errors")
				}
				if pd.Object != nil || pd.Library != nil {
					t.Error("expected no document on error")
				}
				return
			}

			if len(pd.Errors) > 0 {
				t.Fatalf("unexpected errors: %v", pd.Errors)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, pd)
			}
		})
	}
}

func TestCUEParser_DecodeFiles(t *testing.T) {
	tmpDir := t.TempDir()
	parser := NewCUEParser()
	ctx := context.Background()

	modelFile := filepath.Join(tmpDir, "car.cue")
	if err := os.WriteFile(modelFile, []byte(`
objects: wheel: properties: size: "18"
`), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	libFile := filepath.Join(tmpDir, "lib.cue")
	if err := os.WriteFile(libFile, []byte(`
nature: "library"
objects: Wheel: {}
`), 0644); err != nil {
		t.Fatalf("failed to write library: %v", err)
	}

	obj, err := parser.DecodeObject(ctx, modelFile)
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	if !obj.Objects.Has("wheel") {
		t.Error("expected wheel child")
	}

	lib, err := parser.DecodeLibrary(ctx, libFile)
	if err != nil {
		t.Fatalf("DecodeLibrary failed: %v", err)
	}
	if !lib.Objects.Has("Wheel") {
		t.Error("expected Wheel class")
	}

	if _, err := parser.DecodeLibrary(ctx, modelFile); err == nil {
		t.Error("expected nature mismatch error")
	}
	if _, err := parser.DecodeObject(ctx, filepath.Join(tmpDir, "missing.cue")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCUEParser_ParseDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	parser := NewCUEParser()

	files := map[string]string{
		"objects.cue":   "package car\n\nobjects: wheel: {}\n",
		"relations.cue": "package car\n\nrelations: link: {from: [\"wheel\"], to: [\"wheel\"]}\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	pd, err := parser.Parse(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := pd.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if len(pd.SourceFiles) != 2 {
		t.Errorf("expected 2 source files, got %d", len(pd.SourceFiles))
	}
	if !pd.Object.Relations.Has("link") || !pd.Object.Objects.Has("wheel") {
		t.Error("expected package files to be unified")
	}
}
