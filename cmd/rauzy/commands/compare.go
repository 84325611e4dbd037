package commands

import (
	"bytes"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/workspace"
)

// diffRow is one compared key in report form.
type diffRow struct {
	Change string  `json:"change"`
	Kind   string  `json:"kind"`
	Key    string  `json:"key"`
	Self   *string `json:"self,omitempty"`
	Other  *string `json:"other,omitempty"`
}

func newCompareCommand() *cobra.Command {
	var (
		extends bool
		unified bool
	)

	cmd := &cobra.Command{
		Use:   "compare <model-a> <model-b>",
		Short: "Compare the flattened properties of two models",
		Long: `Compare two models by flattening both and reporting the keys present on
one side only and the keys whose values differ.

With --unified, the flattened documents are printed as a unified diff.`,
		Example: `  # Table of differences
  rauzy compare garage-v1.json garage-v2.json

  # Expand library classes first, unified diff output
  rauzy compare --extends --unified a.yaml b.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				a, err := s.loadModel(args[0])
				if err != nil {
					return err
				}
				b, err := s.loadModel(args[1])
				if err != nil {
					return err
				}

				if unified {
					text, err := s.unifiedDiff(a, b, args[0], args[1], extends)
					if err != nil {
						return err
					}
					_, err = io.WriteString(s.out, text)
					return err
				}

				diff, err := a.Compare(s.ctx, b, extends)
				if err != nil {
					return err
				}
				rows := diffRows(diff)
				if jsonOutput {
					return s.printJSON(rows)
				}
				printDiff(s.out, rows)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&extends, "extends", false, "expand library classes before comparing")
	cmd.Flags().BoolVar(&unified, "unified", false, "print a unified diff of the flattened documents")

	return cmd
}

func (s *session) unifiedDiff(a, b *workspace.Model, nameA, nameB string, extends bool) (string, error) {
	format, err := s.format()
	if err != nil {
		return "", err
	}
	flatA, err := flatText(a, format, s.indent(), extends)
	if err != nil {
		return "", err
	}
	flatB, err := flatText(b, format, s.indent(), extends)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(flatA),
		B:        difflib.SplitLines(flatB),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  3,
	})
}

func flatText(m *workspace.Model, format document.Format, indent int, extends bool) (string, error) {
	var (
		flat *model.Object
		err  error
	)
	if extends {
		flat, err = m.Root.FlattenWithExtends(m.Library)
		if err != nil {
			return "", err
		}
	} else {
		flat = m.Root.Flatten()
	}
	var buf bytes.Buffer
	if err := document.Encode(&buf, flat.Document(), format, indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func diffRows(diff *model.Diff) []diffRow {
	rows := make([]diffRow, 0, len(diff.OnlyInOther)+len(diff.OnlyInSelf)+len(diff.Differing))
	add := func(change string, entries []model.DiffEntry, self, other bool) {
		for _, e := range entries {
			row := diffRow{Change: change, Kind: "property", Key: e.Key}
			// an added or removed object has no value, a changed key
			// shows the marker on its object side
			showValues := !e.Object || (self && other)
			if e.Object {
				row.Kind = "object"
			}
			if self && showValues {
				v := e.Self.String()
				row.Self = &v
			}
			if other && showValues {
				v := e.Other.String()
				row.Other = &v
			}
			rows = append(rows, row)
		}
	}
	add("added", diff.OnlyInOther, false, true)
	add("removed", diff.OnlyInSelf, true, false)
	add("changed", diff.Differing, true, true)
	return rows
}

func printDiff(w io.Writer, rows []diffRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "models are identical")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Change", "Kind", "Key", "Self", "Other"})
	table.SetAutoWrapText(false)
	for _, r := range rows {
		table.Append([]string{r.Change, r.Kind, r.Key, deref(r.Self), deref(r.Other)})
	}
	table.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
