package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/policy"
)

// watchDelay debounces editor save bursts.
const watchDelay = 300 * time.Millisecond

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <model>",
		Short: "Re-validate a model whenever it changes",
		Long: `Watch a model file and its library and validate the model again after
every change. Policy files named by the settings are reloaded when they
change.`,
		Example: `  # Keep validating while editing
  rauzy watch garage.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, nil, func(s *session) error {
				engine, err := s.policyEngine()
				if err != nil {
					return err
				}
				if len(s.settings.Policy.Paths) > 0 {
					loader := policy.NewLoader(log.Logger)
					if err := loader.Watch(s.ctx, s.settings.Policy.Paths, engine.ReplacePolicies); err != nil {
						return err
					}
					defer loader.StopWatching()
				}
				return s.watch(args[0], engine)
			})
		},
	}

	return cmd
}

// watch validates path once and then after every change to the model or
// library file, until the context is cancelled.
func (s *session) watch(path string, engine *policy.Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// directories are watched so that editors replacing files are seen
	watched := map[string]bool{}
	files := map[string]bool{}
	track := func(file string) error {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if watched[dir] {
			return nil
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched[dir] = true
		return nil
	}
	if err := track(path); err != nil {
		return err
	}

	check := func() {
		libraryFile, err := s.revalidate(path, engine)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Validation failed")
		}
		if libraryFile != "" {
			if err := track(libraryFile); err != nil {
				log.Warn().Err(err).Str("path", libraryFile).Msg("Cannot watch library")
			}
		}
	}
	check()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-s.ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !files[abs] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDelay, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			check()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

// revalidate loads and lints the model, prints the findings and returns
// the library file it uses.
func (s *session) revalidate(path string, engine *policy.Engine) (string, error) {
	m, err := s.loadModel(path)
	if err != nil {
		return "", err
	}
	libraryFile := ""
	if m.LibraryPath != "" {
		libraryFile = filepath.Join(filepath.Dir(path), m.LibraryPath)
		if filepath.IsAbs(m.LibraryPath) {
			libraryFile = m.LibraryPath
		}
	}

	result, err := s.lint(engine, m)
	if err != nil {
		return libraryFile, err
	}
	fmt.Fprintf(s.out, "--- %s (%s)\n", m.Name, time.Now().Format("15:04:05"))
	printViolations(s.out, m.Name, result)
	return libraryFile, nil
}
