// Package ci implements C8: lowering a project manifest's CI configuration
// into a flat, deterministic intermediate representation (IR v1.5) that a
// platform emitter (GitHub Actions, etc.) turns into concrete workflow
// files. This package only produces and validates the IR; emitting it is
// outside this toolchain's scope (spec.md §1 Non-goals).
package ci

// IR is the full output of compiling one project's CI configuration.
type IR struct {
	Version  string
	Pipeline PipelineIR
	Tasks    []TaskIR
}

// PipelineIR is the lowered form of a model.Pipeline.
type PipelineIR struct {
	Name        string
	Environment string
	Tasks       []string
	Trigger     TriggerIR
}

// TriggerIR is the lowered, platform-neutral trigger condition.
type TriggerIR struct {
	Branches    []string
	PullRequest *bool
	Scheduled   []string
	Release     []string
	Manual      *ManualTriggerIR
	Paths       []string
}

// ManualTriggerIR is the lowered manual-dispatch configuration.
type ManualTriggerIR struct {
	Enabled bool
	Inputs  map[string]WorkflowDispatchInputIR
}

// WorkflowDispatchInputIR is one lowered manual-trigger input.
type WorkflowDispatchInputIR struct {
	Description string
	Required    bool
	Default     string
	Type        string
	Options     []string
}

// CachePolicyIR mirrors model.CachePolicy at the IR layer (kept distinct so
// the IR's wire shape doesn't change if the model type does).
type CachePolicyIR string

const (
	CacheDisabled CachePolicyIR = "disabled"
	CacheEnabled  CachePolicyIR = "enabled"
)

// OutputType names where a task's outputs are published.
type OutputType string

const (
	OutputOrchestrator OutputType = "orchestrator"
	OutputCas          OutputType = "cas"
)

// Phase buckets a contributor task into the pipeline's execution ordering.
type Phase string

const (
	PhaseBootstrap Phase = "bootstrap"
	PhaseSetup     Phase = "setup"
	PhaseSuccess   Phase = "success"
	PhaseFailure   Phase = "failure"
)

// ArtifactDownload describes one upstream artifact a CI-mode task needs
// materialized before it runs.
type ArtifactDownload struct {
	Name   string
	Path   string
	Filter string
}

// TaskIR is one lowered task node.
type TaskIR struct {
	ID          string
	Command     []string
	Shell       bool
	Env         []EnvEntryIR
	DependsOn   []string
	CachePolicy CachePolicyIR
	Deployment  bool
	OutputType  OutputType
	Outputs     []string
	Downloads   []ArtifactDownload

	// Contributor-only fields; zero for manifest-derived tasks.
	Phase          Phase
	GitHubAction   map[string]any
}

// EnvEntryIR is one ordered environment entry on a lowered task; only
// values reducible to a string literal survive lowering (spec.md §4.9).
type EnvEntryIR struct {
	Key   string
	Value string
}
