package repoinsights

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/repo-insights/internal/config"
)

type listCommandOptions struct {
	includeDisabled bool
	configPath      string
}

func newListCommand() *cobra.Command {
	options := &listCommandOptions{}

	command := &cobra.Command{
		Use:   listCommandUse,
		Short: listCommandShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(cmd, *options)
		},
	}

	command.Flags().BoolVar(&options.includeDisabled, allFlagName, false, allFlagUsage)
	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagUsage)

	return command
}

func runListCommand(command *cobra.Command, options listCommandOptions) error {
	loaded, err := config.LoadRoot(options.configPath)
	if err != nil {
		return fmt.Errorf("load root configuration: %w", err)
	}

	for _, workflow := range loaded.Root.Workflows {
		if !options.includeDisabled && !workflow.Enabled {
			continue
		}

		stateLabel := enabledStateLabel
		if !workflow.Enabled {
			stateLabel = disabledStateLabel
		}

		outputWriter := command.OutOrStdout()
		_, writeErr := fmt.Fprintf(outputWriter, "%s\t(%s, model=%s)\n", workflow.Name, stateLabel, dashIfEmpty(workflow.Model))
		if writeErr != nil {
			return fmt.Errorf("write workflow listing: %w", writeErr)
		}
	}

	return nil
}

func dashIfEmpty(value string) string {
	if value == "" {
		return dashPlaceholder
	}
	return value
}
