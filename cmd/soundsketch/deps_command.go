package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundsketch/internal/api"
	"soundsketch/internal/preflight"
)

type depsOutput struct {
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Checks       []preflightCheck       `json:"checks"`
}

type preflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			results := preflight.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				out := depsOutput{Dependencies: api.FromDependencies(statuses)}
				for _, r := range results {
					out.Checks = append(out.Checks, preflightCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				colorize := shouldColorize(w)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(w, line)
				}
				for _, line := range dependencyLines(statuses, colorize) {
					fmt.Fprintln(w, line)
				}
				fmt.Fprintln(w)
				for _, line := range renderSectionHeader("Directories", colorize) {
					fmt.Fprintln(w, line)
				}
				for _, line := range preflightLines(results, colorize) {
					fmt.Fprintln(w, line)
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
