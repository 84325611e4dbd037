package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rauzy/rauzy/pkg/config"
	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/telemetry"
)

const vehiclesLibrary = `{
    "nature": "library",
    "objects": {
        "Wheel": {"nature": "object", "properties": {"diameter": "18"}},
        "Car": {
            "nature": "object",
            "objects": {"wheel": {"nature": "object", "extends": "Wheel"}},
            "properties": {"doors": "4"}
        }
    },
    "relations": {
        "Link": {"nature": "relation", "directional": true}
    }
}
`

const carModel = `{
    "nature": "object",
    "library": "lib/vehicles.json",
    "objects": {
        "car": {"nature": "object", "extends": "Car", "properties": {"color": "red"}},
        "garage": {"nature": "object", "properties": {"size": "big"}}
    },
    "relations": {
        "parked": {"nature": "relation", "extends": "Link", "from": ["car"], "to": ["garage"]}
    }
}
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad_ResolvesLibraryRelativeToModel(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"car.json":          carModel,
		"lib/vehicles.json": vehiclesLibrary,
	})

	m, err := Load(context.Background(), filepath.Join(dir, "car.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "car" {
		t.Errorf("expected name car, got %s", m.Name)
	}
	if m.LibraryPath != "lib/vehicles.json" {
		t.Errorf("expected library path to be kept relative, got %s", m.LibraryPath)
	}
	if !m.Library.HasObjectClass("Car") || !m.Library.HasRelationClass("Link") {
		t.Errorf("expected library classes, got %v %v", m.Library.ObjectClasses(), m.Library.RelationClasses())
	}

	parked, ok := m.Root.Relation("parked")
	if !ok {
		t.Fatalf("expected relation parked")
	}
	for _, ep := range parked.Endpoints() {
		if ep.State != model.Resolved {
			t.Errorf("expected endpoint %s to be resolved, got %s", ep.Name, ep.State)
		}
	}
}

func TestLoad_UnknownClass(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"car.json": `{"nature": "object", "objects": {"car": {"nature": "object", "extends": "Car"}}}`,
	})

	_, err := Load(context.Background(), filepath.Join(dir, "car.json"))
	if !model.IsNotFound(err) {
		t.Fatalf("expected not found error for an unknown class, got %v", err)
	}
}

func TestLoad_SchemaValidation(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"bad.json": `{"nature": "object", "properties": {"size": 3}}`,
	})

	_, err := Load(context.Background(), filepath.Join(dir, "bad.json"),
		WithSchemaValidation(config.NewSchemaRegistry()))
	if err == nil {
		t.Fatal("expected a numeric property to be rejected")
	}
}

func TestLoad_CUEAndYAML(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"garage.cue": `
library: "vehicles.yaml"
objects: {
	car: {extends: "Car"}
	door: properties: open: "no"
}
`,
		"vehicles.yaml": `
nature: library
objects:
  Car:
    nature: object
    properties:
      doors: "4"
relations: {}
`,
	})

	m, err := Load(context.Background(), filepath.Join(dir, "garage.cue"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(m.Root.Objects(), ","); got != "car,door" {
		t.Errorf("expected children car,door, got %s", got)
	}
	if !m.Library.HasObjectClass("Car") {
		t.Errorf("expected class Car from the YAML library")
	}
}

func TestLoad_StarlarkScript(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fleet.star": `
library = lib(objects = {"Wheel": obj(properties = {"diameter": "18"})})
wheels = {"wheel%d" % i: obj(extends = "Wheel") for i in range(count)}
model = obj(objects = wheels)
`,
	})

	m, err := Load(context.Background(), filepath.Join(dir, "fleet.star"),
		WithStarlark(config.NewStarlarkEvaluator(0), map[string]interface{}{"count": 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Root.NumObjects() != 3 {
		t.Errorf("expected 3 wheels, got %d", m.Root.NumObjects())
	}
	if !m.Library.HasObjectClass("Wheel") {
		t.Errorf("expected the script library to be loaded")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"car.json":          carModel,
		"lib/vehicles.json": vehiclesLibrary,
	})
	ctx := context.Background()

	m, err := Load(ctx, filepath.Join(dir, "car.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := filepath.Join(t.TempDir(), "copy.yaml")
	m.Path = out
	m.LibraryPath = "vehicles.yaml"
	if err := m.Save(ctx, 2); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	reloaded, err := Load(ctx, out)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if !reloaded.Root.Equal(m.Root) {
		t.Errorf("expected the reloaded tree to equal the saved one")
	}
	if got := strings.Join(reloaded.Library.ObjectClasses(), ","); got != "Wheel,Car" {
		t.Errorf("expected classes Wheel,Car, got %s", got)
	}
}

func TestSave_Errors(t *testing.T) {
	ctx := context.Background()

	m := New("empty")
	if err := m.Save(ctx, 4); !model.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument without a path, got %v", err)
	}

	m.Path = filepath.Join(t.TempDir(), "empty.json")
	m.Root = nil
	if err := m.Save(ctx, 4); !model.IsInvalidState(err) {
		t.Errorf("expected invalid state without a root, got %v", err)
	}

	m.Root = model.NewObject()
	m.Library = library.New()
	if err := m.Library.AddObjectClass("Wheel", model.NewObject()); err != nil {
		t.Fatalf("failed to add class: %v", err)
	}
	if err := m.Save(ctx, 4); !model.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for a library without a path, got %v", err)
	}

	m.Library = library.New()
	if err := m.Save(ctx, 4); err != nil {
		t.Errorf("expected an empty library to be skipped, got %v", err)
	}
}

func TestModel_Transforms(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"car.json":          carModel,
		"lib/vehicles.json": vehiclesLibrary,
	})

	cfg := telemetry.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Tracing.Exporter = "none"
	cfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	var removed []telemetry.Event
	tel.Events.Subscribe(func(e telemetry.Event) { removed = append(removed, e) },
		telemetry.FilterByType(telemetry.EventTypeRelationsRemoved))
	ctx := tel.WithContext(context.Background())

	m, err := Load(ctx, filepath.Join(dir, "car.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kept, err := m.Keyword(ctx, "size", "big")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(kept.Root.Objects(), ","); got != "garage" {
		t.Errorf("expected only garage to be kept, got %s", got)
	}
	if kept.Root.NumRelations() != 0 {
		t.Errorf("expected parked to be removed")
	}
	if len(removed) != 1 || removed[0].Model != "car" || removed[0].Subject != TransformKeyword {
		t.Errorf("expected one relations.removed event, got %+v", removed)
	}
	if m.Root.NumObjects() != 2 {
		t.Errorf("expected the source model to be untouched")
	}

	flat, err := m.FlattenWithExtends(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for key, want := range map[string]string{
		"car_color":          "red",
		"car_doors":          "4",
		"car_wheel_diameter": "18",
	} {
		v, ok := flat.Root.Property(key)
		if !ok || v.Text() != want {
			t.Errorf("expected %s=%s, got %v", key, want, v)
		}
	}

	diff, err := m.Compare(ctx, flat, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff.Empty() {
		t.Errorf("expected the inherited properties to differ")
	}
	diff, err = m.Compare(ctx, flat, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("expected no difference once classes are expanded, got:\n%s", diff)
	}
}

func TestSaveAs_RebasesLibrary(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"models/car.json":          carModel,
		"models/lib/vehicles.json": vehiclesLibrary,
	})
	ctx := context.Background()

	m, err := Load(ctx, filepath.Join(dir, "models", "car.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	abstracted, err := m.Abstract(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := filepath.Join(dir, "out", "abstract.yaml")
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := abstracted.SaveAs(ctx, out, 2); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if abstracted.LibraryPath != "../models/lib/vehicles.json" {
		t.Errorf("expected the library to be rebased, got %s", abstracted.LibraryPath)
	}

	reloaded, err := Load(ctx, out)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if reloaded.Root.NumObjects() != 0 {
		t.Errorf("expected the abstracted tree, got %d objects", reloaded.Root.NumObjects())
	}
	if !reloaded.Library.HasObjectClass("Car") {
		t.Error("expected the library to be found from the new location")
	}
}

func TestLoad_DefaultLibrary(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"car.json":      strings.Replace(carModel, `"library": "lib/vehicles.json",`, "", 1),
		"vehicles.json": vehiclesLibrary,
	})

	m, err := Load(context.Background(), filepath.Join(dir, "car.json"), WithDefaultLibrary("vehicles.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.LibraryPath != "vehicles.json" {
		t.Errorf("expected the default library, got %q", m.LibraryPath)
	}
	if !m.Library.HasRelationClass("Link") {
		t.Error("expected the default library to be loaded")
	}
}
