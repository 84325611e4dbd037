package commands

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rauzy/rauzy/pkg/config"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect lint policies",
		Long: `Inspect the lint policies validate runs: the built-in rules, the
policies found under policy.paths and --policy, toggled by policy.enable,
policy.disable, --enable and --disable.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())

	return cmd
}

// policyFlags registers the flags selecting and toggling policies and
// returns the settings tweak applying them.
func policyFlags(cmd *cobra.Command) func(*config.Settings) {
	var paths, enable, disable []string
	cmd.Flags().StringSliceVar(&paths, "policy", nil, "extra policy files or directories")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "policies to turn on, also ones their files disable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "policies to turn off")
	return func(s *config.Settings) {
		s.Policy.Paths = append(s.Policy.Paths, paths...)
		s.Policy.Enable = append(s.Policy.Enable, enable...)
		s.Policy.Disable = append(s.Policy.Disable, disable...)
	}
}

func newPolicyListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policies with their severity and state",
		Example: `  # Built-in and project policies
  rauzy policy list --policy ./policies`,
		Args: cobra.NoArgs,
	}
	tweak := policyFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, tweak, func(s *session) error {
			engine, err := s.policyEngine()
			if err != nil {
				return err
			}
			policies := engine.ListPolicies()
			if jsonOutput {
				return s.printJSON(policies)
			}

			table := tablewriter.NewWriter(s.out)
			table.SetHeader([]string{"Policy", "Severity", "State", "Source", "Tags", "Description"})
			table.SetAutoWrapText(false)
			for _, p := range policies {
				state, source := "on", "file"
				if !p.Enabled {
					state = "off"
				}
				if p.Builtin {
					source = "builtin"
				}
				table.Append([]string{p.Name, string(p.Severity), state, source, strings.Join(p.Tags, ","), p.Description})
			}
			table.Render()
			return nil
		})
	}
	return cmd
}

func newPolicyShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <policy>",
		Short: "Print the Rego source of a policy",
		Example: `  # Read a built-in rule
  rauzy policy show unresolved-endpoint`,
		Args: cobra.ExactArgs(1),
	}
	tweak := policyFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, tweak, func(s *session) error {
			engine, err := s.policyEngine()
			if err != nil {
				return err
			}
			p, err := engine.GetPolicy(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return s.printJSON(p)
			}
			fmt.Fprintf(s.out, "# %s (%s)\n", p.Name, p.Severity)
			if p.Description != "" {
				fmt.Fprintf(s.out, "# %s\n", p.Description)
			}
			fmt.Fprintln(s.out, strings.TrimSpace(p.Rego))
			return nil
		})
	}
	return cmd
}
