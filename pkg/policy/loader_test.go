package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const noopRego = "package lint.noop\n\nimport rego.v1\n\ndeny contains msg if { false }"

func quietLoader() *Loader {
	return NewLoader(zerolog.Nop())
}

// writePolicies writes files below dir, creating subdirectories as needed.
func writePolicies(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writePolicies(t, dir, map[string]string{
		"wheel-diameter.rego": `# Wheels must carry a diameter
# severity: error
# tags: wheels, properties

package lint.wheels

import rego.v1

deny contains msg if {
	some obj in input.objects
	obj.extends == "Wheel"
	not "diameter" in obj.properties
	msg := sprintf("%s has no diameter", [obj.path])
}`,
		"orphans.rego":    "# severity: Critical\n# enabled: false\n# tags: relations\npackage lint.orphans",
		"doors.json":      `{"name": "door-count", "description": "Cars list their doors", "rego": "package lint.doors", "tags": ["cars"]}`,
		"anonymous.json":  `{"rego": "package lint.anonymous"}`,
		"broken.json":     "not json",
		"loud.rego":       "# severity: loud\npackage lint.loud",
		"notes.txt":       "not a policy",
		"sub/nested.rego": noopRego,
	})

	tests := []struct {
		file     string
		wantErr  bool
		name     string
		severity Severity
		enabled  bool
		tags     []string
		desc     string
	}{
		{
			file:     "wheel-diameter.rego",
			name:     "wheel-diameter",
			severity: SeverityError,
			enabled:  true,
			tags:     []string{"wheels", "properties"},
			desc:     "Wheels must carry a diameter",
		},
		{
			file:     "orphans.rego",
			name:     "orphans",
			severity: SeverityCritical,
			enabled:  false,
			tags:     []string{"relations"},
		},
		{
			file:     "doors.json",
			name:     "door-count",
			severity: SeverityWarning,
			tags:     []string{"cars"},
			desc:     "Cars list their doors",
		},
		{file: "anonymous.json", wantErr: true},
		{file: "broken.json", wantErr: true},
		{file: "loud.rego", wantErr: true},
		{file: "notes.txt", wantErr: true},
	}

	loader := quietLoader()
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			p, err := loader.loadFromFile(context.Background(), path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected an error loading %s", tt.file)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to load policy: %v", err)
			}
			if p.Name != tt.name {
				t.Errorf("Expected name %q, got %q", tt.name, p.Name)
			}
			if p.Severity != tt.severity {
				t.Errorf("Expected severity %q, got %q", tt.severity, p.Severity)
			}
			if p.Enabled != tt.enabled {
				t.Errorf("Expected enabled=%v, got %v", tt.enabled, p.Enabled)
			}
			if len(p.Tags) != len(tt.tags) {
				t.Fatalf("Expected tags %v, got %v", tt.tags, p.Tags)
			}
			for i := range tt.tags {
				if p.Tags[i] != tt.tags[i] {
					t.Errorf("Expected tags %v, got %v", tt.tags, p.Tags)
				}
			}
			if p.Description != tt.desc {
				t.Errorf("Expected description %q, got %q", tt.desc, p.Description)
			}
		})
	}
}

func TestLoadFromPaths(t *testing.T) {
	dir := t.TempDir()
	writePolicies(t, dir, map[string]string{
		"naming/tmp.rego":        noopRego,
		"naming/deep/other.rego": noopRego,
		"naming/README.md":       "# naming rules",
		"naming/broken.json":     "{",
		"single.rego":            noopRego,
	})

	loader := quietLoader()
	policies, err := loader.LoadFromPaths(context.Background(), []string{
		filepath.Join(dir, "naming"),
		filepath.Join(dir, "single.rego"),
	})
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}
	// the broken file in a directory is skipped, README is not a policy
	if len(policies) != 3 {
		t.Errorf("Expected 3 policies, got %d", len(policies))
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for a missing path")
	}
	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "naming", "broken.json")}); err == nil {
		t.Error("Expected error for a broken file named explicitly")
	}
}

func TestParseRegoFile_Description(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"one line", "# Cars need wheels\npackage cars", "Cars need wheels"},
		{"several lines", "# Cars need wheels\n# on every axle\npackage cars", "Cars need wheels on every axle"},
		{"none", "package cars\n# not a header", ""},
		{"blank comment lines", "# First\n#\n# Second\npackage cars", "First Second"},
		{"directives left out", "# Flags orphan relations\n# severity: critical\n# enabled: false\npackage cars", "Flags orphan relations"},
	}

	loader := quietLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loader.parseRegoFile("/policies/cars.rego", []byte(tt.content))
			if p.Description != tt.want {
				t.Errorf("Expected description %q, got %q", tt.want, p.Description)
			}
			if p.Metadata["source"] != "/policies/cars.rego" {
				t.Errorf("Unexpected source %v", p.Metadata["source"])
			}
		})
	}
}

func TestWatch_HandsReloadedPoliciesToEngine(t *testing.T) {
	dir := t.TempDir()
	writePolicies(t, dir, map[string]string{"tmp.rego": temporaryObjectsRego})

	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	loader := quietLoader()
	err := loader.Watch(ctx, []string{dir}, func(ctx context.Context, policies []Policy) error {
		if err := eng.ReplacePolicies(ctx, policies); err != nil {
			return err
		}
		reloaded <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}
	defer loader.StopWatching()

	writePolicies(t, dir, map[string]string{"tmp.rego": "# severity: critical\n" + temporaryObjectsRego})

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}

	p, err := eng.GetPolicy("tmp")
	if err != nil {
		t.Fatalf("Expected the watched policy in the engine: %v", err)
	}
	if p.Severity != SeverityCritical {
		t.Errorf("Expected the reload to read the new file, got severity %q", p.Severity)
	}
}
