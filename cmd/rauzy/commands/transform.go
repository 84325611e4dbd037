package commands

import (
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/workspace"
)

// transformCommand loads the model named by the single argument, applies
// fn and writes the result to --out or standard output.
func transformCommand(cmd *cobra.Command, fn func(s *session, m *workspace.Model) (*workspace.Model, error)) *cobra.Command {
	var out string

	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil, func(s *session) error {
			m, err := s.loadModel(args[0])
			if err != nil {
				return err
			}
			result, err := fn(s, m)
			if err != nil {
				return err
			}
			return s.writeModel(result, out)
		})
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output model file (default: standard output)")
	return cmd
}

func newAbstractCommand() *cobra.Command {
	var level int

	cmd := transformCommand(&cobra.Command{
		Use:   "abstract <model>",
		Short: "Keep the top levels of a model",
		Long: `Abstract a model by keeping only the given number of levels of children.

Relations that point to removed objects are dropped and reported.`,
		Example: `  # Keep the root and its direct children
  rauzy abstract --level 1 garage.json

  # Write the result next to the original
  rauzy abstract --level 2 --out garage.l2.json garage.json`,
	}, func(s *session, m *workspace.Model) (*workspace.Model, error) {
		return m.Abstract(s.ctx, level)
	})

	cmd.Flags().IntVarP(&level, "level", "l", 0, "number of child levels to keep")
	return cmd
}

func newFlattenCommand() *cobra.Command {
	var (
		level   int
		extends bool
	)

	cmd := transformCommand(&cobra.Command{
		Use:   "flatten <model>",
		Short: "Fold nested objects into their ancestors",
		Long: `Flatten a model by folding the objects below the given level into their
ancestors. Folded properties are prefixed with the object path.

With --extends, every object extending a library class is first expanded
with the class template and the whole tree is flattened.`,
		Example: `  # Flatten everything into the root
  rauzy flatten garage.json

  # Keep one level of children
  rauzy flatten --level 1 garage.json

  # Expand classes and flatten
  rauzy flatten --extends --format yaml garage.json`,
	}, func(s *session, m *workspace.Model) (*workspace.Model, error) {
		if extends {
			return m.FlattenWithExtends(s.ctx)
		}
		return m.Flatten(s.ctx, level)
	})

	cmd.Flags().IntVarP(&level, "level", "l", -1, "number of child levels to keep (negative flattens everything)")
	cmd.Flags().BoolVar(&extends, "extends", false, "expand library classes before flattening")
	return cmd
}

func newKeywordCommand() *cobra.Command {
	var key, value string

	cmd := transformCommand(&cobra.Command{
		Use:   "keyword <model>",
		Short: "Keep the objects carrying a property value",
		Long: `Filter a model down to the descendants whose property matches the given
value. The root is always kept.`,
		Example: `  # Keep electrical components
  rauzy keyword --key domain --value electrical car.json`,
	}, func(s *session, m *workspace.Model) (*workspace.Model, error) {
		return m.Keyword(s.ctx, key, value)
	})

	cmd.Flags().StringVar(&key, "key", "", "property key")
	cmd.Flags().StringVar(&value, "value", "", "property value")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}
