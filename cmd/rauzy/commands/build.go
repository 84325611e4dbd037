package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/config"
	"github.com/rauzy/rauzy/pkg/workspace"
)

func newBuildCommand() *cobra.Command {
	var (
		out        string
		libraryOut string
		inputs     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "build <script.star>",
		Short: "Build a model from a Starlark script",
		Long: `Evaluate a Starlark script and write the model it binds to the global
"model". A script may also bind "library"; its classes are written to
--library-out and referenced by the model.

Scripts describe documents with the obj(), rel() and lib()
builtins. Values passed with --input are predeclared as "input".`,
		Example: `  # Build a model
  rauzy build garage.star --out garage.json

  # Build a model and its inline library
  rauzy build garage.star --out garage.yaml --library-out vehicles.yaml

  # Pass values to the script
  rauzy build garage.star --out garage.json --input cars=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				input := make(map[string]interface{}, len(inputs))
				for k, v := range inputs {
					input[k] = v
				}
				eval := config.NewStarlarkEvaluator(s.settings.Starlark.Timeout)
				opts := append(s.options(), workspace.WithStarlark(eval, map[string]interface{}{"input": input}))

				m, err := workspace.Load(s.ctx, args[0], opts...)
				if err != nil {
					return err
				}
				m.Name = workspace.NameFromPath(out)

				// a library file named by the script is left as it is
				if m.LibraryPath != "" || m.Library.Len() == 0 {
					return m.SaveAs(s.ctx, out, s.indent())
				}
				if libraryOut == "" {
					return fmt.Errorf("%s builds a library, --library-out is required", args[0])
				}
				rel, err := filepath.Rel(filepath.Dir(out), libraryOut)
				if err != nil {
					rel = libraryOut
				}
				m.Path = out
				m.LibraryPath = filepath.ToSlash(rel)
				if err := m.Save(s.ctx, s.indent()); err != nil {
					return err
				}
				log.Info().
					Str("model", out).
					Str("library", libraryOut).
					Msg("Model built")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output model file")
	cmd.Flags().StringVar(&libraryOut, "library-out", "", "output file for a library built by the script")
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "values passed to the script as input")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
