package workspace

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadAll_KeepsOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.json":            carModel,
		"b.json":            `{"nature": "object", "properties": {"x": "1"}}`,
		"broken.json":       `{"nature": "relation"}`,
		"lib/vehicles.json": vehiclesLibrary,
	})
	paths := []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "missing.json"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "broken.json"),
	}

	var visited int32
	jobs := LoadAll(context.Background(), paths, 2, func(ctx context.Context, m *Model) error {
		atomic.AddInt32(&visited, 1)
		return nil
	})

	if len(jobs) != len(paths) {
		t.Fatalf("expected %d jobs, got %d", len(paths), len(jobs))
	}
	for i, job := range jobs {
		if job.Path != paths[i] {
			t.Errorf("job %d: expected path %s, got %s", i, paths[i], job.Path)
		}
	}
	if jobs[0].Err != nil || jobs[0].Model == nil || jobs[0].Model.Name != "a" {
		t.Errorf("expected a to load, got %+v", jobs[0])
	}
	if jobs[1].Err == nil {
		t.Error("expected missing file to fail")
	}
	if jobs[2].Err != nil || jobs[2].Model.Name != "b" {
		t.Errorf("expected b to load, got %+v", jobs[2])
	}
	if jobs[3].Err == nil {
		t.Error("expected a relation document to fail as a model")
	}
	if visited != 2 {
		t.Errorf("expected fn to run for 2 models, got %d", visited)
	}
}

func TestLoadAll_Cancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.json": `{"nature": "object"}`,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := LoadAll(ctx, []string{filepath.Join(dir, "a.json")}, 0, nil)
	if jobs[0].Err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", jobs[0].Err)
	}
}

func TestLoadAll_Empty(t *testing.T) {
	if jobs := LoadAll(context.Background(), nil, 3, nil); len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
}

func TestLoadAll_BoundsWorkers(t *testing.T) {
	files := map[string]string{}
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files[name+".json"] = `{"nature": "object"}`
	}
	dir := writeFiles(t, files)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		paths = append(paths, filepath.Join(dir, name+".json"))
	}

	var running, peak int32
	jobs := LoadAll(context.Background(), paths, 2, func(ctx context.Context, m *Model) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	for _, job := range jobs {
		if job.Err != nil {
			t.Errorf("expected %s to load, got %v", job.Path, job.Err)
		}
	}
	if peak > 2 {
		t.Errorf("expected at most 2 models at once, got %d", peak)
	}
}
