package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
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

const garageModel = `{
    "nature": "object",
    "library": "vehicles.json",
    "objects": {
        "car": {"nature": "object", "extends": "Car", "properties": {"color": "red"}},
        "garage": {"nature": "object", "properties": {"size": "big"}}
    },
    "relations": {
        "parked": {"nature": "relation", "extends": "Link", "from": ["car"], "to": ["garage"]}
    }
}
`

const noGaragesPolicy = `# Garages are not allowed
# severity: error
package rauzy.custom.garages

import rego.v1

deny contains violation if {
	some obj in input.objects
	obj.name == "garage"
	violation := {"message": "garages are not allowed", "severity": "error", "subject": obj.path}
}
`

// workdir writes the fixtures and a settings file keeping the store and
// logs out of the way.
func workdir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["rauzy.yaml"] = "environment: test\n" +
		"log:\n  level: error\n" +
		"store:\n  path: " + filepath.ToSlash(filepath.Join(dir, "rauzy.db")) + "\n"
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

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "unknown")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "rauzy.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate_CleanModel(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"garage.json":   garageModel,
	})

	out, err := execute(t, dir, "validate", filepath.Join(dir, "garage.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "garage: valid") {
		t.Errorf("Expected valid report, got: %s", out)
	}
}

func TestValidate_EnforcingPolicy(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json":         vehiclesLibrary,
		"garage.json":           garageModel,
		"policies/garages.rego": noGaragesPolicy,
	})
	model := filepath.Join(dir, "garage.json")
	policies := filepath.Join(dir, "policies")

	out, err := execute(t, dir, "validate", "--policy", policies, model)
	if err != nil {
		t.Fatalf("Expected advisory mode to succeed, got: %v", err)
	}
	if !strings.Contains(out, "garages are not allowed") || !strings.Contains(out, "invalid") {
		t.Errorf("Expected the finding in the report, got: %s", out)
	}

	_, err = execute(t, dir, "validate", "--policy", policies, "--enforce", model)
	if err == nil {
		t.Fatal("Expected enforcing mode to fail")
	}
	if !strings.Contains(err.Error(), "1 blocking") {
		t.Errorf("Expected blocking count in error, got: %v", err)
	}
}

func TestValidate_DisablePolicy(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json":         vehiclesLibrary,
		"garage.json":           garageModel,
		"policies/garages.rego": noGaragesPolicy,
	})
	model := filepath.Join(dir, "garage.json")
	policies := filepath.Join(dir, "policies")

	out, err := execute(t, dir, "validate", "--policy", policies, "--disable", "garages", "--enforce", model)
	if err != nil {
		t.Fatalf("Expected the disabled policy not to block, got: %v", err)
	}
	if strings.Contains(out, "garages are not allowed") {
		t.Errorf("Expected no finding from a disabled policy, got: %s", out)
	}

	if _, err := execute(t, dir, "validate", "--disable", "no-such-rule", model); err == nil {
		t.Error("Expected an error disabling an unknown policy")
	}
}

func TestPolicy_ListAndShow(t *testing.T) {
	dir := workdir(t, map[string]string{
		"policies/garages.rego": noGaragesPolicy,
	})
	policies := filepath.Join(dir, "policies")

	out, err := execute(t, dir, "policy", "list", "--policy", policies, "--disable", "garages")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "unresolved-endpoint") || !strings.Contains(out, "builtin") {
		t.Errorf("Expected the built-in rules in the list, got: %s", out)
	}
	var garages string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "garages") {
			garages = line
		}
	}
	if !strings.Contains(garages, "off") || !strings.Contains(garages, "Garages are not allowed") {
		t.Errorf("Expected the custom policy listed as off, got: %q", garages)
	}

	out, err = execute(t, dir, "policy", "show", "--policy", policies, "garages")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "package rauzy.custom.garages") || !strings.Contains(out, "# garages (error)") {
		t.Errorf("Expected the policy source, got: %s", out)
	}

	if _, err := execute(t, dir, "policy", "show", "missing"); err == nil {
		t.Error("Expected an error for an unknown policy")
	}
}

func TestValidate_JSON(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json":         vehiclesLibrary,
		"garage.json":           garageModel,
		"policies/garages.rego": noGaragesPolicy,
	})

	out, err := execute(t, dir, "validate", "--json", "--policy", filepath.Join(dir, "policies"), filepath.Join(dir, "garage.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var reports []struct {
		Model  string `json:"model"`
		Result struct {
			Allowed    bool `json:"allowed"`
			Violations []struct {
				Subject string `json:"subject"`
			} `json:"violations"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(reports) != 1 || reports[0].Model != "garage" {
		t.Fatalf("Unexpected reports: %+v", reports)
	}
	result := reports[0].Result
	if result.Allowed || len(result.Violations) != 1 || result.Violations[0].Subject != "garage" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestValidate_ManyModels(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"a.json":        garageModel,
		"b.json":        garageModel,
		"broken.json":   `{"nature": "library"}`,
	})

	out, err := execute(t, dir, "validate", "--parallel", "2",
		filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "a: valid") || !strings.Contains(out, "b: valid") {
		t.Errorf("Expected both models reported, got: %s", out)
	}
	if strings.Index(out, "a: valid") > strings.Index(out, "b: valid") {
		t.Errorf("Expected reports in argument order, got: %s", out)
	}

	_, err = execute(t, dir, "validate", filepath.Join(dir, "a.json"), filepath.Join(dir, "broken.json"))
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("Expected one failed model, got: %v", err)
	}
}

func TestValidate_MissingClass(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"boat.json": `{
    "nature": "object",
    "library": "vehicles.json",
    "objects": {"boat": {"nature": "object", "extends": "Boat"}}
}`,
	})

	if _, err := execute(t, dir, "validate", filepath.Join(dir, "boat.json")); err == nil {
		t.Fatal("Expected an error for an unknown class")
	}
}

func TestAbstract_WritesModel(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"garage.json":   garageModel,
	})
	out := filepath.Join(dir, "out", "garage.yaml")
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	if _, err := execute(t, dir, "abstract", "--level", "0", "--out", out, filepath.Join(dir, "garage.json")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected output file, got: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "library: ../vehicles.json") {
		t.Errorf("Expected library reference rebased, got:\n%s", text)
	}
	if strings.Contains(text, "garage") || strings.Contains(text, "parked") {
		t.Errorf("Expected children and their relations to be removed, got:\n%s", text)
	}

	// the written model loads again
	if _, err := execute(t, dir, "validate", out); err != nil {
		t.Errorf("Expected written model to validate, got: %v", err)
	}
}

func TestFlatten_Stdout(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"garage.json":   garageModel,
	})

	out, err := execute(t, dir, "flatten", "--json", filepath.Join(dir, "garage.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, key := range []string{`"car_color": "red"`, `"garage_size": "big"`} {
		if !strings.Contains(out, key) {
			t.Errorf("Expected %s in output, got:\n%s", key, out)
		}
	}
	if strings.Contains(out, "car_doors") {
		t.Errorf("Expected class properties to be left out without --extends, got:\n%s", out)
	}

	out, err = execute(t, dir, "flatten", "--extends", "--json", filepath.Join(dir, "garage.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, `"car_doors": "4"`) || !strings.Contains(out, `"car_color": "red"`) {
		t.Errorf("Expected class properties merged into the flattened model, got:\n%s", out)
	}
}

func TestKeyword_RequiresFlags(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"garage.json":   garageModel,
	})

	if _, err := execute(t, dir, "keyword", "--key", "color", filepath.Join(dir, "garage.json")); err == nil {
		t.Fatal("Expected an error without --value")
	}

	out, err := execute(t, dir, "keyword", "--key", "size", "--value", "big", "--json", filepath.Join(dir, "garage.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, `"garage"`) || strings.Contains(out, `"car"`) {
		t.Errorf("Expected only garage to be kept, got:\n%s", out)
	}
}

func TestCompare(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"a.json":        garageModel,
		"b.json":        strings.Replace(garageModel, `"color": "red"`, `"color": "blue"`, 1),
	})
	a, b := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")

	out, err := execute(t, dir, "compare", "--json", a, b)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var rows []diffRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(rows) != 1 || rows[0].Change != "changed" || rows[0].Key != "car_color" {
		t.Fatalf("Unexpected rows: %+v", rows)
	}
	if deref(rows[0].Self) != "red" || deref(rows[0].Other) != "blue" {
		t.Errorf("Expected red -> blue, got %s -> %s", deref(rows[0].Self), deref(rows[0].Other))
	}

	out, err = execute(t, dir, "compare", "--unified", a, b)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var removed, added bool
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSuffix(strings.TrimSpace(strings.TrimLeft(line, "+-")), ",")
		switch {
		case strings.HasPrefix(line, "-") && trimmed == `"car_color": "red"`:
			removed = true
		case strings.HasPrefix(line, "+") && trimmed == `"car_color": "blue"`:
			added = true
		}
	}
	if !removed || !added {
		t.Errorf("Expected unified diff lines, got:\n%s", out)
	}

	out, err = execute(t, dir, "compare", a, a)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "models are identical") {
		t.Errorf("Expected identical models, got: %s", out)
	}
}

func TestLibrary_Commands(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"extra.json": `{
    "nature": "library",
    "objects": {"Truck": {"nature": "object", "properties": {"doors": "2", "axles": "3"}}}
}`,
	})
	lib := filepath.Join(dir, "vehicles.json")

	out, err := execute(t, dir, "library", "classes", "--json", lib)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var rows []classRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(rows) != 3 {
		t.Errorf("Expected 3 classes, got %+v", rows)
	}

	out, err = execute(t, dir, "library", "graph", lib)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "level 0: Wheel") || !strings.Contains(out, "level 1: Car") {
		t.Errorf("Expected levels, got: %s", out)
	}

	out, err = execute(t, dir, "library", "graph", "--dot", lib)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, `"Car" -> "Wheel"`) {
		t.Errorf("Expected DOT edge, got: %s", out)
	}

	out, err = execute(t, dir, "library", "instantiate", "--json", lib, "Car")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, `"doors": "4"`) || !strings.Contains(out, `"wheel"`) {
		t.Errorf("Expected Car instance, got: %s", out)
	}
	if strings.Contains(out, `"extends": "Car"`) {
		t.Errorf("Expected a class without parent to be copied as is, got: %s", out)
	}

	merged := filepath.Join(dir, "all.json")
	if _, err := execute(t, dir, "library", "merge", lib, filepath.Join(dir, "extra.json"), "--out", merged); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out, err = execute(t, dir, "library", "classes", "--json", merged)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, `"Truck"`) {
		t.Errorf("Expected merged library to contain Truck, got: %s", out)
	}

	if _, err := execute(t, dir, "library", "rename", lib, "Car", "Automobile"); err == nil {
		t.Error("Expected rename without --object or --relation to fail")
	}
	if _, err := execute(t, dir, "library", "rename", "--object", lib, "Car", "Automobile"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	data, err := os.ReadFile(lib)
	if err != nil {
		t.Fatalf("failed to read library: %v", err)
	}
	if !strings.Contains(string(data), `"Automobile"`) || strings.Contains(string(data), `"Car"`) {
		t.Errorf("Expected Car renamed in place, got:\n%s", data)
	}
}

func TestBuild_Script(t *testing.T) {
	dir := workdir(t, map[string]string{
		"garage.star": `
library = lib(objects = {"Car": obj(properties = {"doors": "4"})})
model = obj(objects = {
    "car": obj(extends = "Car", properties = {"color": input["color"]}),
})
`,
	})
	out := filepath.Join(dir, "garage.json")

	if _, err := execute(t, dir, "build", filepath.Join(dir, "garage.star"), "--out", out, "--input", "color=green"); err == nil {
		t.Fatal("Expected an error without --library-out")
	}

	libOut := filepath.Join(dir, "lib", "vehicles.json")
	if err := os.MkdirAll(filepath.Dir(libOut), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if _, err := execute(t, dir, "build", filepath.Join(dir, "garage.star"),
		"--out", out, "--library-out", libOut, "--input", "color=green"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected model file, got: %v", err)
	}
	if !strings.Contains(string(data), `"library": "lib/vehicles.json"`) || !strings.Contains(string(data), `"green"`) {
		t.Errorf("Unexpected model:\n%s", data)
	}
	if _, err := os.Stat(libOut); err != nil {
		t.Errorf("Expected library file, got: %v", err)
	}
}

func TestStore_PushPullList(t *testing.T) {
	dir := workdir(t, map[string]string{
		"vehicles.json": vehiclesLibrary,
		"garage.json":   garageModel,
	})
	model := filepath.Join(dir, "garage.json")

	if _, err := execute(t, dir, "store", "push", model); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// unchanged documents keep their version
	if _, err := execute(t, dir, "store", "push", model); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	out, err := execute(t, dir, "store", "list", "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var snaps []struct {
		Kind    string `json:"kind"`
		Name    string `json:"name"`
		Version int    `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &snaps); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected a model and a library snapshot, got %+v", snaps)
	}
	for _, snap := range snaps {
		if snap.Version != 1 {
			t.Errorf("Expected version 1, got %+v", snap)
		}
	}

	if _, err := execute(t, dir, "store", "list", "--kind", "boat"); err == nil {
		t.Error("Expected an error for an unknown kind")
	}

	restored := filepath.Join(dir, "restored", "garage.json")
	if err := os.MkdirAll(filepath.Dir(restored), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if _, err := execute(t, dir, "store", "pull", "garage", "--out", restored); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "restored", "vehicles.json")); err != nil {
		t.Errorf("Expected library next to the restored model, got: %v", err)
	}
	if _, err := execute(t, dir, "validate", restored); err != nil {
		t.Errorf("Expected restored model to validate, got: %v", err)
	}

	out, err = execute(t, dir, "store", "events", "--json", "--type", "snapshot.saved")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "snapshot.saved") {
		t.Errorf("Expected snapshot events in the audit log, got: %s", out)
	}
}

func TestStore_PullUnknown(t *testing.T) {
	dir := workdir(t, map[string]string{})

	if _, err := execute(t, dir, "store", "pull", "nothing", "--out", filepath.Join(dir, "x.json")); err == nil {
		t.Fatal("Expected an error for an unknown snapshot")
	}
}
