package commands

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/workspace"
)

func newLibraryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and edit class libraries",
		Long: `Inspect and edit class libraries.

A library holds the object and relation classes that models extend.`,
	}

	cmd.AddCommand(newLibraryClassesCommand())
	cmd.AddCommand(newLibraryGraphCommand())
	cmd.AddCommand(newLibraryInstantiateCommand())
	cmd.AddCommand(newLibraryMergeCommand())
	cmd.AddCommand(newLibraryRenameCommand())

	return cmd
}

// classRow describes one library class.
type classRow struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Extends    string `json:"extends,omitempty"`
	Properties int    `json:"properties"`
	Objects    int    `json:"objects,omitempty"`
	Relations  int    `json:"relations,omitempty"`
}

func classRows(lib *library.Library) []classRow {
	var rows []classRow
	for _, name := range lib.ObjectClasses() {
		obj, _ := lib.ObjectClass(name)
		rows = append(rows, classRow{
			Kind:       "object",
			Name:       name,
			Extends:    obj.Extends(),
			Properties: obj.NumProperties(),
			Objects:    obj.NumObjects(),
			Relations:  obj.NumRelations(),
		})
	}
	for _, name := range lib.RelationClasses() {
		rel, _ := lib.RelationClass(name)
		rows = append(rows, classRow{
			Kind:       "relation",
			Name:       name,
			Extends:    rel.Extends(),
			Properties: rel.Properties().Len(),
		})
	}
	return rows
}

func newLibraryClassesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classes <library>",
		Short: "List the classes of a library",
		Example: `  # List classes
  rauzy library classes vehicles.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				lib, err := s.loadLibrary(args[0])
				if err != nil {
					return err
				}
				rows := classRows(lib)
				if jsonOutput {
					return s.printJSON(rows)
				}

				table := tablewriter.NewWriter(s.out)
				table.SetHeader([]string{"Kind", "Class", "Extends", "Properties", "Objects", "Relations"})
				for _, r := range rows {
					table.Append([]string{
						r.Kind, r.Name, r.Extends,
						fmt.Sprint(r.Properties), fmt.Sprint(r.Objects), fmt.Sprint(r.Relations),
					})
				}
				table.Render()
				return nil
			})
		},
	}
}

func newLibraryGraphCommand() *cobra.Command {
	var (
		dot       bool
		relations bool
	)

	cmd := &cobra.Command{
		Use:   "graph <library>",
		Short: "Show the class dependency levels",
		Long: `Show the order in which library classes are defined. A class depends on
the class it extends and on the classes of its direct children.`,
		Example: `  # Print levels
  rauzy library graph vehicles.json

  # Render with graphviz
  rauzy library graph --dot vehicles.json | dot -Tpng -o classes.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				lib, err := s.loadLibrary(args[0])
				if err != nil {
					return err
				}

				var (
					levels [][]string
					text   string
				)
				title := workspace.NameFromPath(args[0])
				if relations {
					graph, err := lib.RelationGraph()
					if err != nil {
						return err
					}
					levels, text = graph.Levels(), graph.ToDOT(title+" relations")
				} else {
					graph, err := lib.ObjectGraph()
					if err != nil {
						return err
					}
					levels, text = graph.Levels(), graph.ToDOT(title+" objects")
				}

				switch {
				case dot:
					fmt.Fprint(s.out, text)
				case jsonOutput:
					return s.printJSON(levels)
				default:
					for i, names := range levels {
						fmt.Fprintf(s.out, "level %d: %s\n", i, strings.Join(names, ", "))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print a graphviz DOT graph")
	cmd.Flags().BoolVar(&relations, "relations", false, "show relation classes instead of object classes")

	return cmd
}

func newLibraryInstantiateCommand() *cobra.Command {
	var relation bool

	cmd := &cobra.Command{
		Use:   "instantiate <library> <class>",
		Short: "Print an instance of a class",
		Long: `Print the document of a fresh instance of a class: the class chain merged
from the root class down, marked as extending the class.`,
		Example: `  # Instantiate an object class
  rauzy library instantiate vehicles.json Car

  # Instantiate a relation class as YAML
  rauzy library instantiate --relation --format yaml vehicles.json Link`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				lib, err := s.loadLibrary(args[0])
				if err != nil {
					return err
				}
				if relation {
					rel, err := lib.InstantiateRelation(args[1])
					if err != nil {
						return err
					}
					return s.writeDocument(rel.Document())
				}
				obj, err := lib.InstantiateObject(args[1])
				if err != nil {
					return err
				}
				return s.writeDocument(obj.Document())
			})
		},
	}

	cmd.Flags().BoolVar(&relation, "relation", false, "instantiate a relation class")

	return cmd
}

func newLibraryMergeCommand() *cobra.Command {
	var (
		overload bool
		out      string
	)

	cmd := &cobra.Command{
		Use:   "merge <library-a> <library-b>",
		Short: "Merge two libraries",
		Long: `Merge two libraries into a new one. A class defined in both fails the
merge unless --overload is set, in which case the second library wins.`,
		Example: `  # Merge into a new file
  rauzy library merge base.json extra.json --out all.json

  # Let extra.json override shared classes
  rauzy library merge --overload base.json extra.json --out all.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				a, err := s.loadLibrary(args[0])
				if err != nil {
					return err
				}
				b, err := s.loadLibrary(args[1])
				if err != nil {
					return err
				}
				merged, err := library.Merge(a, b, overload)
				if err != nil {
					return err
				}
				if err := workspace.SaveLibrary(s.ctx, merged, out, s.indent()); err != nil {
					return err
				}
				log.Info().
					Str("path", out).
					Int("classes", merged.Len()).
					Msg("Library written")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overload, "overload", false, "let the second library override shared classes")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output library file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newLibraryRenameCommand() *cobra.Command {
	var (
		object   bool
		relation bool
		out      string
	)

	cmd := &cobra.Command{
		Use:   "rename <library> <old> <new>",
		Short: "Rename a class",
		Long: `Rename an object or relation class. The library file is rewritten in place
unless --out is given.`,
		Example: `  # Rename an object class
  rauzy library rename --object vehicles.json Car Automobile

  # Rename a relation class into a new file
  rauzy library rename --relation vehicles.json Link Cable --out renamed.json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if object == relation {
				return fmt.Errorf("exactly one of --object or --relation is required")
			}
			return run(cmd, nil, func(s *session) error {
				lib, err := s.loadLibrary(args[0])
				if err != nil {
					return err
				}
				if object {
					err = lib.RenameObjectClass(args[1], args[2])
				} else {
					err = lib.RenameRelationClass(args[1], args[2])
				}
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = args[0]
				}
				if err := workspace.SaveLibrary(s.ctx, lib, path, s.indent()); err != nil {
					return err
				}
				log.Info().
					Str("from", args[1]).
					Str("to", args[2]).
					Str("path", path).
					Msg("Class renamed")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&object, "object", false, "rename an object class")
	cmd.Flags().BoolVar(&relation, "relation", false, "rename a relation class")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output library file (default: rewrite in place)")

	return cmd
}
