package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/config"
)

func newServeMetricsCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve-metrics [model...]",
		Short: "Serve Prometheus metrics",
		Long: `Serve the Prometheus metrics endpoint until interrupted.

Models given as arguments are loaded and linted first, so that their
gauges and findings are exported.`,
		Example: `  # Serve on the configured address
  rauzy serve-metrics

  # Export the state of two models on another port
  rauzy serve-metrics --listen :9191 garage.json car.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tweak := func(s *config.Settings) {
				s.Metrics.Enabled = true
				if listen != "" {
					s.Metrics.ListenAddress = listen
				}
			}
			return run(cmd, tweak, func(s *session) error {
				if len(args) > 0 {
					engine, err := s.policyEngine()
					if err != nil {
						return err
					}
					for _, path := range args {
						m, err := s.loadModel(path)
						if err != nil {
							return err
						}
						if _, err := s.lint(engine, m); err != nil {
							return err
						}
					}
				}

				log.Info().
					Str("address", s.settings.Metrics.ListenAddress).
					Str("path", s.settings.Metrics.Path).
					Msg("Serving metrics")
				return s.tel.Metrics.ServeMetrics(s.ctx)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: metrics.listen_address)")

	return cmd
}
