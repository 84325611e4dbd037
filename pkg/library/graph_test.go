package library

import (
	"errors"
	"strings"
	"testing"

	"github.com/rauzy/rauzy/pkg/model"
)

func positions(nodes []Node[int]) map[string]int {
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.Name] = i
	}
	return pos
}

func TestDependencyGraph_Build_Empty(t *testing.T) {
	g := NewDependencyGraph[int]()
	order, err := g.Build()
	if err != nil {
		t.Fatalf("Expected no error for empty graph, got: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("Expected 0 nodes, got %d", len(order))
	}
	if len(g.Levels()) != 0 {
		t.Errorf("Expected 0 levels, got %d", len(g.Levels()))
	}
}

func TestDependencyGraph_Build_RespectsEdges(t *testing.T) {
	g := NewDependencyGraph[int]()
	for i, name := range []string{"car", "wheel", "vehicle", "tire", "engine"} {
		if err := g.AddClass(name, i); err != nil {
			t.Fatalf("Expected no error adding %s, got: %v", name, err)
		}
	}
	edges := [][2]string{
		{"car", "vehicle"},
		{"car", "wheel"},
		{"wheel", "tire"},
		{"car", "engine"},
	}
	for _, e := range edges {
		if err := g.AddDependency(e[0], e[1]); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	order, err := g.Build()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(order) != 5 {
		t.Fatalf("Expected 5 nodes, got %d", len(order))
	}
	pos := positions(order)
	for _, e := range edges {
		if pos[e[1]] >= pos[e[0]] {
			t.Errorf("Expected %s before %s, got order %v", e[1], e[0], nodeNames(order))
		}
	}

	if order[len(order)-1].Name != "car" {
		t.Errorf("Expected car last, got %s", order[len(order)-1].Name)
	}
	if order[len(order)-1].Level != 2 {
		t.Errorf("Expected car at level 2, got %d", order[len(order)-1].Level)
	}
	if order[0].Element != 2 {
		t.Errorf("Expected element carried with node, got %d", order[0].Element)
	}

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("Expected 3 levels, got %d", len(levels))
	}
	if strings.Join(levels[0], ",") != "vehicle,tire,engine" {
		t.Errorf("Expected level 0 in insertion order, got %v", levels[0])
	}
}

func TestDependencyGraph_Build_DoesNotMutate(t *testing.T) {
	g := NewDependencyGraph[int]()
	_ = g.AddClass("a", 0)
	_ = g.AddClass("b", 1)
	_ = g.AddDependency("a", "b")

	first, err := g.Build()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := g.Build()
	if err != nil {
		t.Fatalf("Expected no error on second build, got: %v", err)
	}
	if strings.Join(nodeNames(first), ",") != strings.Join(nodeNames(second), ",") {
		t.Errorf("Expected stable order, got %v and %v", nodeNames(first), nodeNames(second))
	}
}

func TestDependencyGraph_Build_Cycle(t *testing.T) {
	g := NewDependencyGraph[int]()
	for _, name := range []string{"base", "a", "b", "c"} {
		_ = g.AddClass(name, 0)
	}
	_ = g.AddDependency("a", "base")
	_ = g.AddDependency("a", "b")
	_ = g.AddDependency("b", "c")
	_ = g.AddDependency("c", "a")

	_, err := g.Build()
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	if !model.IsCyclicDependency(err) {
		t.Fatalf("Expected cyclic dependency, got: %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("Expected cycle path in error, got: %v", err)
	}

	var merr *model.Error
	if !errors.As(err, &merr) || merr.Name != "a" {
		t.Errorf("Expected cycle participant a named in error, got: %v", err)
	}
}

func TestDependencyGraph_Build_SelfCycle(t *testing.T) {
	g := NewDependencyGraph[int]()
	_ = g.AddClass("loop", 0)
	_ = g.AddDependency("loop", "loop")

	_, err := g.Build()
	if !model.IsCyclicDependency(err) {
		t.Fatalf("Expected cyclic dependency, got: %v", err)
	}
	if !strings.Contains(err.Error(), "loop -> loop") {
		t.Errorf("Expected self cycle in error, got: %v", err)
	}
}

func TestDependencyGraph_AddClass_Duplicate(t *testing.T) {
	g := NewDependencyGraph[int]()
	if err := g.AddClass("a", 0); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := g.AddClass("a", 1); !model.IsAlreadyExists(err) {
		t.Errorf("Expected already exists, got: %v", err)
	}
	if err := g.AddDependency("a", "missing"); !model.IsNotFound(err) {
		t.Errorf("Expected not found, got: %v", err)
	}
}

func TestDependencyGraph_ToDOT(t *testing.T) {
	g := NewDependencyGraph[int]()
	_ = g.AddClass("car", 0)
	_ = g.AddClass("wheel", 0)
	_ = g.AddDependency("car", "wheel")
	if _, err := g.Build(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	dot := g.ToDOT("objects")
	for _, want := range []string{`digraph "objects"`, "cluster_level_0", "cluster_level_1", `"car" -> "wheel"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %s, got:\n%s", want, dot)
		}
	}
}
