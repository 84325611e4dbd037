package library

import (
	"strings"
	"testing"

	"github.com/rauzy/rauzy/pkg/model"
)

func TestLibrary_ObjectGraph(t *testing.T) {
	lib := New()
	garage := objectWith(t, "")
	if err := garage.AddObject("car", objectWith(t, "Car")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := garage.SetExtends("Building"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, c := range []struct {
		name string
		obj  *model.Object
	}{
		{"Garage", garage},
		{"Car", objectWith(t, "", "wheels", "4")},
		{"Building", objectWith(t, "")},
	} {
		if err := lib.AddObjectClass(c.name, c.obj); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	graph, err := lib.ObjectGraph()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	levels := graph.Levels()
	if len(levels) != 2 {
		t.Fatalf("Expected 2 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[1]) != 1 || levels[1][0] != "Garage" {
		t.Errorf("Expected Garage alone on level 1, got %v", levels[1])
	}

	dot := graph.ToDOT("objects")
	for _, edge := range []string{`"Garage" -> "Building"`, `"Garage" -> "Car"`} {
		if !strings.Contains(dot, edge) {
			t.Errorf("Expected DOT output to contain %s", edge)
		}
	}
}

func TestLibrary_ObjectGraph_UnknownParent(t *testing.T) {
	lib := New()
	if err := lib.AddObjectClass("Car", objectWith(t, "Vehicle")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	graph, err := lib.ObjectGraph()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if graph.Len() != 1 {
		t.Errorf("Expected 1 class, got %d", graph.Len())
	}
}

func TestLibrary_RelationGraph(t *testing.T) {
	lib := New()
	base := model.NewRelation()
	link := model.NewRelation()
	if err := link.SetExtends("Base"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := lib.AddRelationClass("Link", link); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := lib.AddRelationClass("Base", base); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	graph, err := lib.RelationGraph()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	levels := graph.Levels()
	if len(levels) != 2 || levels[0][0] != "Base" || levels[1][0] != "Link" {
		t.Errorf("Expected [[Base] [Link]], got %v", levels)
	}
}
