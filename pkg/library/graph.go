package library

import (
	"fmt"
	"strings"

	"github.com/rauzy/rauzy/pkg/model"
)

// Node is a class of a built dependency graph.
type Node[T any] struct {
	// Name is the class name.
	Name string

	// Element is the value registered with the class.
	Element T

	// Level is the length of the longest dependency chain below the class.
	// Classes at level 0 depend on nothing in the graph.
	Level int
}

// DependencyGraph orders class definitions so that every class comes
// after the classes it depends on.
type DependencyGraph[T any] struct {
	// names lists classes in insertion order
	names []string

	// elements maps class names to their values
	elements map[string]T

	// dependsOn maps a class to the classes it needs
	dependsOn map[string][]string

	// usedBy maps a class to the classes that need it
	usedBy map[string][]string

	// levels groups class names by level after Build
	levels [][]string
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph[T any]() *DependencyGraph[T] {
	return &DependencyGraph[T]{
		elements:  make(map[string]T),
		dependsOn: make(map[string][]string),
		usedBy:    make(map[string][]string),
	}
}

// Len returns the number of classes.
func (g *DependencyGraph[T]) Len() int {
	return len(g.names)
}

// Has reports whether name is a node of the graph.
func (g *DependencyGraph[T]) Has(name string) bool {
	_, ok := g.elements[name]
	return ok
}

// AddClass adds a node.
func (g *DependencyGraph[T]) AddClass(name string, element T) error {
	if name == "" {
		return model.NewInvalidArgumentError("class name must not be empty", nil).
			WithCode(model.ErrCodeEmptyName).
			WithOperation("add_class")
	}
	if _, exists := g.elements[name]; exists {
		return model.NewAlreadyExistsError(fmt.Sprintf("duplicate class: %s", name), nil).
			WithName(name).
			WithOperation("add_class")
	}
	g.names = append(g.names, name)
	g.elements[name] = element
	return nil
}

// AddDependency records that name1 needs name2 to be defined first.
// Adding the same edge twice has no effect.
func (g *DependencyGraph[T]) AddDependency(name1, name2 string) error {
	for _, n := range []string{name1, name2} {
		if _, exists := g.elements[n]; !exists {
			return model.NewNotFoundError(fmt.Sprintf("class %s is not in the graph", n), nil).
				WithName(n).
				WithOperation("add_dependency")
		}
	}
	for _, dep := range g.dependsOn[name1] {
		if dep == name2 {
			return nil
		}
	}
	g.dependsOn[name1] = append(g.dependsOn[name1], name2)
	g.usedBy[name2] = append(g.usedBy[name2], name1)
	return nil
}

// Build returns the classes in dependency order: for every dependency
// name1 -> name2, name2 comes before name1. Classes that become ready at
// the same time keep their insertion order. Nodes and edges are left
// intact, so Build can be called again after adding more classes.
func (g *DependencyGraph[T]) Build() ([]Node[T], error) {
	// Kahn's algorithm with a FIFO worklist
	remaining := make(map[string]int, len(g.names))
	level := make(map[string]int, len(g.names))
	queue := make([]string, 0, len(g.names))
	for _, name := range g.names {
		remaining[name] = len(g.dependsOn[name])
		if remaining[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]Node[T], 0, len(g.names))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, Node[T]{Name: name, Element: g.elements[name], Level: level[name]})

		for _, dependant := range g.usedBy[name] {
			if level[name]+1 > level[dependant] {
				level[dependant] = level[name] + 1
			}
			remaining[dependant]--
			if remaining[dependant] == 0 {
				queue = append(queue, dependant)
			}
		}
	}

	if len(order) != len(g.names) {
		cycle := g.findCycle(remaining)
		return nil, model.NewCyclicDependencyError(
			fmt.Sprintf("circular dependency detected: %s", formatCycle(cycle)),
			nil,
		).WithName(cycle[0]).
			WithOperation("build").
			WithDetail("cycle", cycle)
	}

	g.levels = nil
	for _, n := range order {
		for len(g.levels) <= n.Level {
			g.levels = append(g.levels, nil)
		}
		g.levels[n.Level] = append(g.levels[n.Level], n.Name)
	}
	return order, nil
}

// findCycle walks the unprocessed classes, following the first
// unprocessed dependency of each, until a class repeats. Every unprocessed
// class has at least one unprocessed dependency, so the walk always ends
// on a cycle.
func (g *DependencyGraph[T]) findCycle(remaining map[string]int) []string {
	var start string
	for _, name := range g.names {
		if remaining[name] > 0 {
			start = name
			break
		}
	}

	position := make(map[string]int)
	path := make([]string, 0)
	current := start
	for {
		if i, seen := position[current]; seen {
			return append(path[i:], current)
		}
		position[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range g.dependsOn[current] {
			if remaining[dep] > 0 {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		current = next
	}
}

// Levels returns the class names grouped by level, as computed by the
// last successful Build.
func (g *DependencyGraph[T]) Levels() [][]string {
	return g.levels
}

// ToDOT generates a DOT representation of the graph for visualization.
// Edges point from a class to the class it depends on.
func (g *DependencyGraph[T]) ToDOT(title string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("digraph %q {\n", title))
	sb.WriteString("  rankdir=BT;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range g.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("    %q;\n", name))
		}
		sb.WriteString("  }\n\n")
	}

	for _, name := range g.names {
		for _, dep := range g.dependsOn[name] {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", name, dep))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}
