package repoinsights

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repo-insights/internal/config"
	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
	"github.com/temirov/repo-insights/internal/snapshot"
	"github.com/temirov/repo-insights/workflows/features"
	"github.com/temirov/repo-insights/workflows/kpis"
)

// runResult is the JSON document written to stdout after a run.
type runResult struct {
	Workflow     string             `json:"workflow"`
	RunID        string             `json:"run_id"`
	Features     []features.Feature `json:"features,omitempty"`
	KPIs         []kpis.KPI         `json:"kpis,omitempty"`
	Warnings     []string           `json:"warnings"`
	AgentHistory []string           `json:"agent_history"`
}

func runWorkflowCommand(command *cobra.Command, options runCommandOptions) error {
	loaded, loadErr := config.LoadRoot(options.configPath)
	if loadErr != nil {
		return loadErr
	}
	root := loaded.Root

	workflowEntry, workflowFound := root.FindWorkflow(options.workflowName)
	if !workflowFound || !workflowEntry.Enabled {
		return fmt.Errorf("unknown or disabled workflow %q", options.workflowName)
	}

	model, modelErr := resolveModel(root, workflowEntry, options.modelOverride)
	if modelErr != nil {
		return modelErr
	}

	settings, settingsErr := config.MapWorkflow(workflowEntry)
	if settingsErr != nil {
		return fmt.Errorf("map workflow %s: %w", workflowEntry.Name, settingsErr)
	}
	maxCandidates := settings.Limits.MaxCandidates
	if options.maxCandidates > 0 {
		maxCandidates = options.maxCandidates
	}
	if maxCandidates <= 0 {
		maxCandidates = root.Common.Defaults.MaxCandidates
	}
	guidance := options.guidance
	if guidance == "" {
		guidance = settings.Guidance
	}

	logger, loggerErr := buildLogger(root)
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	completer, clientErr := buildCompletionClient(root, options, logger)
	if clientErr != nil {
		return clientErr
	}

	snap, snapErr := resolveSnapshot(command.Context(), options)
	if snapErr != nil {
		return snapErr
	}

	registry := engine.NewRegistry()
	registry.Register(features.WorkflowName, func() (engine.Definition, error) {
		return features.NewDefinition(completer, features.Config{Model: model, MaxCandidates: maxCandidates}), nil
	})
	registry.Register(kpis.WorkflowName, func() (engine.Definition, error) {
		return kpis.NewDefinition(completer, kpis.Config{Model: model, MaxCandidates: maxCandidates}), nil
	})

	definition, defErr := registry.Create(options.workflowName)
	if defErr != nil {
		return defErr
	}

	initial, stateErr := buildInitialState(options.workflowName, snap, guidance)
	if stateErr != nil {
		return stateErr
	}

	pipelineEngine := engine.Engine{Logger: logger}
	events, execErr := pipelineEngine.Execute(command.Context(), definition, initial)
	if execErr != nil {
		return execErr
	}

	final, consumeErr := consumeEvents(command, options, events)
	if consumeErr != nil {
		return consumeErr
	}
	return writeResult(command, options.workflowName, final)
}

func resolveModel(root config.Root, workflowEntry config.Workflow, override string) (config.Model, error) {
	name := workflowEntry.Model
	if override != "" {
		name = override
	}
	if name != "" {
		model, found := root.FindModel(name)
		if !found {
			return config.Model{}, fmt.Errorf("model %q not found in models[]", name)
		}
		return model, nil
	}
	model, found := root.DefaultModel()
	if !found {
		return config.Model{}, fmt.Errorf("no default model configured")
	}
	return model, nil
}

func buildLogger(root config.Root) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if strings.EqualFold(root.Common.Logging.Format, "console") {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level := strings.TrimSpace(root.Common.Logging.Level); level != "" {
		parsed, parseErr := zap.ParseAtomicLevel(level)
		if parseErr != nil {
			return nil, fmt.Errorf("parse logging level %q: %w", level, parseErr)
		}
		zapConfig.Level = parsed
	}
	return zapConfig.Build()
}

func buildCompletionClient(root config.Root, options runCommandOptions, logger *zap.Logger) (*llm.Client, error) {
	endpoint := root.Common.API.Endpoint
	if endpoint == "" {
		return nil, fmt.Errorf("common.api.endpoint is not configured")
	}
	apiKeyEnv := root.Common.API.APIKeyEnv
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv))
	if apiKey == "" {
		return nil, fmt.Errorf("API key environment variable %s is empty", apiKeyEnv)
	}

	retryConfig := llm.DefaultRetryConfig()
	if options.attempts > 0 {
		retryConfig.MaxAttempts = options.attempts
	} else if root.Common.Defaults.Attempts > 0 {
		retryConfig.MaxAttempts = root.Common.Defaults.Attempts
	}

	timeout := options.timeout
	if timeout <= 0 && root.Common.Defaults.TimeoutSeconds > 0 {
		timeout = time.Duration(root.Common.Defaults.TimeoutSeconds) * time.Second
	}

	clientOptions := []llm.ClientOption{
		llm.WithRetryConfig(retryConfig),
		llm.WithLogger(logger),
	}
	if timeout > 0 {
		clientOptions = append(clientOptions, llm.WithCallTimeout(timeout))
	}
	return llm.NewClient(endpoint, apiKey, clientOptions...), nil
}

func resolveSnapshot(ctx context.Context, options runCommandOptions) (snapshot.Snapshot, error) {
	switch {
	case options.snapshotPath != "":
		return snapshot.LoadFile(options.snapshotPath)
	case options.repoPath != "":
		builder := snapshot.NewBuilder(snapshot.DefaultOptions())
		return builder.Build(ctx, options.repoPath)
	default:
		return snapshot.Snapshot{}, fmt.Errorf("either --%s or --%s is required", snapshotFlagName, repoFlagName)
	}
}

func buildInitialState(workflowName string, snap snapshot.Snapshot, guidance string) (*engine.State, error) {
	switch workflowName {
	case kpis.WorkflowName:
		return kpis.InitialState(snap, guidance)
	default:
		return features.InitialState(snap, guidance)
	}
}

// consumeEvents drains the event stream, optionally echoing each event
// as a JSON line, and returns the final state from the complete event.
func consumeEvents(command *cobra.Command, options runCommandOptions, events <-chan engine.Event) (*engine.State, error) {
	var final *engine.State
	for event := range events {
		if options.printEvents {
			encoded, encodeErr := json.Marshal(event)
			if encodeErr == nil {
				fmt.Fprintln(command.ErrOrStderr(), string(encoded))
			}
		}
		if event.Type == engine.EventComplete {
			final = event.State
		}
	}
	if final == nil {
		return nil, fmt.Errorf("run ended without a complete event")
	}
	return final, nil
}

func writeResult(command *cobra.Command, workflowName string, final *engine.State) error {
	result := runResult{
		Workflow:     workflowName,
		RunID:        final.RunID,
		Warnings:     final.Warnings,
		AgentHistory: final.AgentHistory,
	}
	switch workflowName {
	case kpis.WorkflowName:
		if ranked, ok := kpis.ResultFrom(final); ok {
			result.KPIs = ranked
		}
	default:
		if ranked, ok := features.ResultFrom(final); ok {
			result.Features = ranked
		}
	}

	encoded, encodeErr := json.MarshalIndent(result, "", "  ")
	if encodeErr != nil {
		return fmt.Errorf("encode result: %w", encodeErr)
	}
	_, writeErr := fmt.Fprintln(command.OutOrStdout(), string(encoded))
	return writeErr
}
