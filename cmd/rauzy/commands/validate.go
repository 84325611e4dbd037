package commands

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/config"
	"github.com/rauzy/rauzy/pkg/policy"
	"github.com/rauzy/rauzy/pkg/workspace"
)

// validation is the report of one validated model.
type validation struct {
	Model  string         `json:"model,omitempty"`
	Path   string         `json:"path"`
	Result *policy.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		enforce  bool
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "validate <model>...",
		Short: "Validate models and lint them with policies",
		Long: `Validate model files and their libraries.

This command checks:
  - Document syntax and schema conformance
  - Class references (every extends names a library class)
  - Policy compliance (OPA/rego): built-in lint rules and custom policies

Several models are validated in parallel. In enforcing mode, error and
critical findings fail the command.`,
		Example: `  # Validate a model
  rauzy validate garage.json

  # Add custom policies and fail on blocking findings
  rauzy validate --policy ./policies --enforce garage.yaml

  # Skip a built-in rule
  rauzy validate --disable property-key-separator garage.json

  # Validate a directory of models
  rauzy validate --parallel 8 models/*.json`,
		Args: cobra.MinimumNArgs(1),
	}
	policyTweak := policyFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		tweak := func(s *config.Settings) {
			policyTweak(s)
			if enforce {
				s.Policy.Mode = "enforcing"
			}
		}
		return run(cmd, tweak, func(s *session) error {
			var engine *policy.Engine
			if s.settings.Policy.Enabled {
				var err error
				if engine, err = s.policyEngine(); err != nil {
					return err
				}
			}

			var mu sync.Mutex
			results := make(map[string]*policy.Result, len(args))
			jobs := workspace.LoadAll(s.ctx, args, parallel, func(ctx context.Context, m *workspace.Model) error {
				if engine == nil {
					return nil
				}
				result, err := s.lint(engine, m)
				if err != nil {
					return err
				}
				mu.Lock()
				results[m.Path] = result
				mu.Unlock()
				return nil
			}, s.options()...)

			reports := make([]validation, len(jobs))
			failed, blocking := 0, 0
			for i, job := range jobs {
				reports[i] = validation{Path: job.Path, Result: results[job.Path]}
				if job.Model != nil {
					reports[i].Model = job.Model.Name
				}
				if job.Err != nil {
					reports[i].Error = job.Err.Error()
					failed++
				} else if r := reports[i].Result; r != nil && !r.Allowed {
					blocking++
				}
			}

			if jsonOutput {
				if err := s.printJSON(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					switch {
					case r.Error != "":
						fmt.Fprintf(s.out, "%s: %s\n", r.Path, r.Error)
					case r.Result == nil:
						fmt.Fprintf(s.out, "%s: valid\n", r.Model)
					default:
						printViolations(s.out, r.Model, r.Result)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d models failed validation", failed, len(jobs))
			}
			if blocking > 0 && s.settings.Policy.Mode == "enforcing" {
				if len(reports) == 1 {
					return s.enforce(reports[0].Model, reports[0].Result)
				}
				return fmt.Errorf("%d of %d models have blocking policy violations", blocking, len(jobs))
			}
			return nil
		})
	}

	cmd.Flags().BoolVar(&enforce, "enforce", false, "fail on error and critical findings")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", workspace.DefaultWorkers, "number of models validated at once")

	return cmd
}

// policyEngine creates an engine with the built-in rules and the policies
// named by the settings, toggled as the settings ask.
func (s *session) policyEngine() (*policy.Engine, error) {
	engine, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(s.settings.Policy.Paths) > 0 {
		if err := engine.LoadPolicies(s.ctx, s.settings.Policy.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range s.settings.Policy.Enable {
		if err := engine.EnablePolicy(name); err != nil {
			return nil, err
		}
	}
	for _, name := range s.settings.Policy.Disable {
		if err := engine.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func (s *session) lint(engine *policy.Engine, m *workspace.Model) (*policy.Result, error) {
	result, err := engine.EvaluateModel(s.ctx, m.Name, m.Root, m.Library)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Warn().Str("model", m.Name).Msg(w)
	}
	return result, nil
}

// enforce fails when blocking findings are present and the policy mode
// is enforcing.
func (s *session) enforce(name string, result *policy.Result) error {
	if result.Allowed || s.settings.Policy.Mode != "enforcing" {
		return nil
	}
	blocking := result.Count(policy.SeverityError) + result.Count(policy.SeverityCritical)
	return fmt.Errorf("model %s has %d blocking policy violations", name, blocking)
}

func printViolations(w io.Writer, name string, result *policy.Result) {
	if len(result.Violations) == 0 {
		fmt.Fprintf(w, "%s: valid, %d policies passed\n", name, len(result.EvaluatedPolicies))
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Policy", "Subject", "Message"})
	table.SetAutoWrapText(false)
	for _, v := range result.Violations {
		table.Append([]string{string(v.Severity), v.Policy, v.Subject, v.Message})
	}
	table.Render()

	status := "valid"
	if !result.Allowed {
		status = "invalid"
	}
	fmt.Fprintf(w, "%s: %s, %d findings (%d critical, %d errors, %d warnings, %d info)\n",
		name, status, len(result.Violations),
		result.Count(policy.SeverityCritical),
		result.Count(policy.SeverityError),
		result.Count(policy.SeverityWarning),
		result.Count(policy.SeverityInfo))
}
