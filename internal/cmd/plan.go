package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/poe-code/ralph/internal/planmodel"
	"github.com/poe-code/ralph/internal/planparser"
	"github.com/poe-code/ralph/internal/planvalidate"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect a plan file",
	}

	cmd.AddCommand(newPlanShowCommand())
	cmd.AddCommand(newPlanValidateCommand())

	return cmd
}

func newPlanShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Print a plan's stories and their status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (version %d)\n", plan.Project, plan.Version)
			for _, story := range plan.Stories {
				fmt.Fprintf(out, "  [%s] %s: %s\n", story.Status, story.ID, story.Title)
				if len(story.DependsOn) > 0 {
					fmt.Fprintf(out, "      depends on: %v\n", story.DependsOn)
				}
			}
			return nil
		},
	}
}

func newPlanValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Report structural issues in a plan file (duplicates, missing/cyclic deps)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(args[0])
			if err != nil {
				return err
			}

			findings := planvalidate.Check(plan)
			out := cmd.OutOrStdout()
			if len(findings) == 0 {
				color.New(color.FgGreen).Fprintln(out, "no issues found")
				return nil
			}

			warn := color.New(color.FgYellow)
			for _, f := range findings {
				warn.Fprintf(out, "warning: %s\n", f.String())
			}
			return nil
		},
	}
}

func readPlan(path string) (*planmodel.Plan, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	plan, err := planparser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return plan, nil
}
