package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/stores"
	"github.com/rauzy/rauzy/pkg/workspace"
)

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Versioned model snapshots",
		Long: `Save and restore versioned snapshots of models and their libraries.

Snapshots live in the SQLite database named by store.path in the settings.
Every event raised while a store command runs is appended to its audit log.`,
	}

	cmd.AddCommand(newStorePushCommand())
	cmd.AddCommand(newStorePullCommand())
	cmd.AddCommand(newStoreListCommand())
	cmd.AddCommand(newStoreEventsCommand())

	return cmd
}

// withStore opens the snapshot store, records events into it while fn
// runs and closes it.
func (s *session) withStore(fn func(store *stores.SQLiteStore) error) error {
	store, err := stores.NewSQLiteStore(stores.Config{Path: s.settings.Store.Path})
	if err != nil {
		return err
	}
	if err := store.Init(s.ctx); err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(s.ctx); err != nil {
		return err
	}

	s.tel.Events.Subscribe(stores.Recorder(s.ctx, store), nil)
	return fn(store)
}

func newStorePushCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "push <model>",
		Short: "Save a snapshot of a model and its library",
		Long: `Save a snapshot of a model. Its library, when it has one, is saved first
and linked to the model snapshot. Documents identical to the latest
version are not stored again.`,
		Example: `  # Snapshot a model under its file name
  rauzy store push garage.json

  # Snapshot under another name
  rauzy store push --name garage-prod garage.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				return s.withStore(func(store *stores.SQLiteStore) error {
					m, err := s.loadModel(args[0])
					if err != nil {
						return err
					}
					if name != "" {
						m.Name = name
					}

					var (
						libraryID *string
						saved     []*stores.Snapshot
					)
					if m.LibraryPath != "" {
						libName := workspace.NameFromPath(m.LibraryPath)
						snap, err := store.SaveLibrary(s.ctx, libName, m.Library.Document())
						if err != nil {
							return err
						}
						libraryID = &snap.ID
						saved = append(saved, snap)
					}

					doc := m.Root.Document()
					doc.Library = m.LibraryPath
					snap, err := store.SaveModel(s.ctx, m.Name, doc, libraryID)
					if err != nil {
						return err
					}
					saved = append(saved, snap)

					if jsonOutput {
						return s.printJSON(saved)
					}
					printSnapshots(s.out, saved)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default: model file name)")

	return cmd
}

func newStorePullCommand() *cobra.Command {
	var (
		version    int
		out        string
		libraryOut string
	)

	cmd := &cobra.Command{
		Use:   "pull <name>",
		Short: "Restore a model snapshot",
		Long: `Restore a model snapshot to a file. When the snapshot is linked to a
library, the library is written next to the model, or to --library-out.`,
		Example: `  # Restore the latest version
  rauzy store pull garage --out garage.json

  # Restore version 2 as YAML
  rauzy store pull garage --version 2 --out garage.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				return s.withStore(func(store *stores.SQLiteStore) error {
					snap, err := store.GetModel(s.ctx, args[0], version)
					if err != nil {
						return err
					}
					doc, err := snap.Model()
					if err != nil {
						return err
					}

					m := workspace.New(snap.Name)
					m.Path = out
					doc.Library = ""
					if snap.LibraryID != nil {
						libSnap, err := store.GetSnapshot(s.ctx, *snap.LibraryID)
						if err != nil {
							return err
						}
						libDoc, err := libSnap.Library()
						if err != nil {
							return err
						}
						lib := library.New()
						if err := lib.Load(libDoc); err != nil {
							return err
						}
						m.Library = lib

						path := libraryOut
						if path == "" {
							path = filepath.Join(filepath.Dir(out), libSnap.Name+filepath.Ext(out))
						}
						rel, err := filepath.Rel(filepath.Dir(out), path)
						if err != nil {
							rel = path
						}
						m.LibraryPath = filepath.ToSlash(rel)
					}

					if m.Root, err = model.FromDocument(doc, m.Library); err != nil {
						return err
					}
					if err := m.Save(s.ctx, s.indent()); err != nil {
						return err
					}
					log.Info().
						Str("model", snap.Name).
						Int("version", snap.Version).
						Str("path", out).
						Msg("Snapshot restored")
					return nil
				})
			})
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "snapshot version (default: latest)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output model file")
	cmd.Flags().StringVar(&libraryOut, "library-out", "", "output library file (default: next to the model)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newStoreListCommand() *cobra.Command {
	var (
		kind   string
		name   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		Example: `  # List everything
  rauzy store list

  # List the versions of one model
  rauzy store list --kind model --name garage`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var kindFilter *stores.SnapshotKind
			switch stores.SnapshotKind(kind) {
			case "":
			case stores.SnapshotKindModel, stores.SnapshotKindLibrary:
				k := stores.SnapshotKind(kind)
				kindFilter = &k
			default:
				return fmt.Errorf("unknown snapshot kind: %s (must be 'model' or 'library')", kind)
			}
			var nameFilter *string
			if name != "" {
				nameFilter = &name
			}

			return run(cmd, nil, func(s *session) error {
				return s.withStore(func(store *stores.SQLiteStore) error {
					snaps, err := store.ListSnapshots(s.ctx, kindFilter, nameFilter, limit, offset)
					if err != nil {
						return err
					}
					if jsonOutput {
						return s.printJSON(snaps)
					}
					printSnapshots(s.out, snaps)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "snapshot kind (model, library)")
	cmd.Flags().StringVar(&name, "name", "", "snapshot name")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of snapshots")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of snapshots to skip")

	return cmd
}

func newStoreEventsCommand() *cobra.Command {
	var (
		modelName string
		eventType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the audit log",
		Example: `  # Recent events
  rauzy store events

  # Policy findings for one model
  rauzy store events --model garage --type policy.violation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := stores.EventFilter{}
			if modelName != "" {
				filter.Model = &modelName
			}
			if eventType != "" {
				filter.Type = &eventType
			}

			return run(cmd, nil, func(s *session) error {
				return s.withStore(func(store *stores.SQLiteStore) error {
					events, err := store.ListEvents(s.ctx, filter, limit, 0)
					if err != nil {
						return err
					}
					if jsonOutput {
						return s.printJSON(events)
					}

					table := tablewriter.NewWriter(s.out)
					table.SetHeader([]string{"Time", "Level", "Type", "Model", "Message"})
					table.SetAutoWrapText(false)
					for _, e := range events {
						table.Append([]string{
							e.Timestamp.Format("2006-01-02 15:04:05"),
							string(e.Level), e.Type, deref(e.Model), e.Message,
						})
					}
					table.Render()
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "only events of this model")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")

	return cmd
}

func printSnapshots(w io.Writer, snaps []*stores.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Name", "Version", "Hash", "Created"})
	for _, snap := range snaps {
		table.Append([]string{
			string(snap.Kind),
			snap.Name,
			fmt.Sprint(snap.Version),
			shortHash(snap.Hash),
			snap.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
