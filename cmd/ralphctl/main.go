// Command ralphctl drives the Ralph build loop from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/poe-code/ralph/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
