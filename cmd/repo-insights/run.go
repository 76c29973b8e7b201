package repoinsights

import (
	"time"

	"github.com/spf13/cobra"
)

type runCommandOptions struct {
	configPath    string
	workflowName  string
	snapshotPath  string
	repoPath      string
	guidance      string
	maxCandidates int
	modelOverride string
	timeout       time.Duration
	attempts      int
	printEvents   bool
}

func newRunCommand() *cobra.Command {
	options := &runCommandOptions{
		workflowName: defaultWorkflowName,
	}

	command := &cobra.Command{
		Use:   runCommandUse,
		Short: runCommandShort,
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			effectiveOptions := *options
			if len(args) > 0 {
				effectiveOptions.workflowName = args[0]
			}
			return runWorkflowCommand(cmd, effectiveOptions)
		},
	}

	command.Flags().StringVar(&options.workflowName, workflowFlagName, defaultWorkflowName, workflowFlagUsage)
	command.Flags().StringVar(&options.snapshotPath, snapshotFlagName, "", snapshotFlagUsage)
	command.Flags().StringVar(&options.repoPath, repoFlagName, "", repoFlagUsage)
	command.Flags().StringVar(&options.guidance, guidanceFlagName, "", guidanceFlagUsage)
	command.Flags().IntVar(&options.maxCandidates, maxCandidatesFlagName, 0, maxCandidatesFlagUsage)
	command.Flags().StringVar(&options.modelOverride, modelFlagName, "", modelFlagUsage)
	command.Flags().DurationVar(&options.timeout, timeoutFlagName, 0, timeoutFlagUsage)
	command.Flags().IntVar(&options.attempts, attemptsFlagName, 0, attemptsFlagUsage)
	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagUsage)
	command.Flags().BoolVar(&options.printEvents, eventsFlagName, false, eventsFlagUsage)

	return command
}
