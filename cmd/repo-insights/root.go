package repoinsights

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   rootCommandUse,
	Short: rootCommandShort,
}

func init() {
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newListCommand())
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
