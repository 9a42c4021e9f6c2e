// Package cmd implements ralphctl's cobra command tree, grounded on the
// teacher's internal/cmd package (blueman82/conductor): a thin cmd/ralphctl
// main.go delegates straight to NewRootCommand, and each subcommand lives in
// its own file.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates the root ralphctl command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ralphctl",
		Short: "Autonomous single-story build loop",
		Long: `ralphctl drives an autonomous build loop: it selects one actionable
story from a plan file, renders a prompt, spawns a coding-agent subprocess,
classifies the outcome, and repeats until the plan is exhausted, the
operator aborts after a story overbakes, or an iteration limit is reached.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewBuildCommand())
	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
