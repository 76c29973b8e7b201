package repoinsights

const (
	rootCommandUse   = "repo-insights"
	rootCommandShort = "Discover product features and business KPIs for a repository"

	runCommandUse   = "run [WORKFLOW]"
	runCommandShort = "Run a discovery workflow against a repository"

	listCommandUse   = "list"
	listCommandShort = "List workflows from the configuration (enabled by default)"

	defaultWorkflowName = "features"

	configFlagName         = "config"
	configFlagUsage        = "Path to config.yaml"
	allFlagName            = "all"
	allFlagUsage           = "Show disabled workflows as well"
	workflowFlagName       = "workflow"
	workflowFlagUsage      = "Workflow name to run (from config.yaml)"
	snapshotFlagName       = "snapshot"
	snapshotFlagUsage      = "Path to a pre-built repository snapshot JSON file"
	repoFlagName           = "repo"
	repoFlagUsage          = "Path to a local repository checkout to snapshot"
	guidanceFlagName       = "guidance"
	guidanceFlagUsage      = "Free-text guidance passed to the discovery stages"
	maxCandidatesFlagName  = "max-candidates"
	maxCandidatesFlagUsage = "Maximum candidates per discovery stage (0 = use defaults)"
	modelFlagName          = "model"
	modelFlagUsage         = "Override workflow's model by name (must exist in models[])"
	timeoutFlagName        = "timeout"
	timeoutFlagUsage       = "Per-completion timeout (e.g., 45s; 0 = use defaults)"
	attemptsFlagName       = "attempts"
	attemptsFlagUsage      = "Max provider retry attempts per completion (0 = use defaults)"
	eventsFlagName         = "events"
	eventsFlagUsage        = "Print stream events as JSON lines on stderr"

	enabledStateLabel  = "enabled"
	disabledStateLabel = "disabled"
	dashPlaceholder    = "-"
)
