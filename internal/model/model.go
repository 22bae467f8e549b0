// Package model defines the shared data model for a cuenv module: the
// typed view of a project's manifest, its tasks, and the execution
// state produced by running them. Every other internal package
// (ident, taskindex, discovery, inject, graph, envmodel, hooksup, ci,
// tools) both consumes and produces these types, so they live in one
// leaf package to avoid import cycles.
package model

import "time"

// Project is a typed configuration unit at some directory within a module root.
type Project struct {
	// Name is the manifest's declared name, used to derive the ProjectID.
	Name string

	// Root is the absolute path to the project's directory.
	Root string

	// ModuleRoot is the absolute path to the enclosing module's root
	// (the directory containing cue.mod/).
	ModuleRoot string

	Env        EnvTable
	Tasks      map[string]TaskDefinition
	Workspaces map[string]Workspace
	Runtime    *RuntimeDescriptor
	CI         *CIConfig
}

// EnvTable is a manifest's base environment plus named per-environment overrides.
type EnvTable struct {
	Base        map[string]Value
	Environment map[string]map[string]Value
}

// RuntimeDescriptor names a runtime (flake reference + digest) a project requires.
type RuntimeDescriptor struct {
	Flake  string
	Digest string
}

// Workspace is a single workspace declaration on a project manifest.
type Workspace struct {
	Name           string
	Enabled        bool
	BeforeInstall  []WorkspaceHookStep
	InstallTask    string // defaults to "<name>.install"
	SetupTask      string // defaults to "<name>.setup"
}

// WorkspaceHookStep is one step of a workspace's beforeInstall chain.
type WorkspaceHookStep struct {
	// Script, when non-empty, is an inline script step.
	Script string

	// Match, when non-nil, looks up upstream tasks via the discovery matcher.
	Match *TaskMatcher
}

// TaskMatcher is a declarative filter used to find upstream tasks across projects.
type TaskMatcher struct {
	LabelsRequired []string
	LabelsOptional []string
	CommandPrefix  string
	Parallel       bool
}

// Task is the primary executable entity in a project's task table.
type Task struct {
	Name string

	Command string
	Args    []string
	Script  string

	// Shell overrides the shell used to run Script ({Command, Flag}, e.g. {"/bin/sh", "-c"}).
	Shell *ShellOverride

	Env    map[string]Value
	Labels map[string]struct{}

	// DependsOn holds dependency names in their raw, pre-normalization form.
	DependsOn []string

	Inputs       []string
	TaskInputs   []TaskRef
	Outputs      []string
	Params       ParamSchema
	TaskRef      *TaskRef
	Directory    string
	Workspaces   []string
	Hermetic     bool
	CachePolicy  CachePolicy

	// ProjectRoot is the absolute root of the project that owns this task's
	// definition. For a task cloned via reference resolution (§4.4), this is
	// the *referenced* project's root, not the project the clone was inserted
	// into — dependency scoping follows this field (spec.md §4.5, §9).
	ProjectRoot string

	// SourceFile records the manifest file this task definition came from,
	// for list-command attribution (C2).
	SourceFile string
}

// ShellOverride names an explicit shell + invocation flag for Script tasks.
type ShellOverride struct {
	Command string
	Flag    string
}

// CachePolicy is the executor's cache-policy hook; this repo does not
// implement a content-addressable store, only the enum the executor and
// IR lowering consult (spec.md §1 Non-goals).
type CachePolicy string

const (
	CacheDefault  CachePolicy = ""
	CacheDisabled CachePolicy = "disabled"
	CacheEnabled  CachePolicy = "enabled"
)

// ParamSchema is a task's declared positional + named parameters.
type ParamSchema struct {
	Positional []Param
	Named      map[string]Param
}

// Param describes one parameter (positional or named).
type Param struct {
	Required    bool
	Default     string
	Description string
	ShortAlias  string
	Type        string // JSON-Schema-ish scalar type: "string", "int", "bool"
}

// TaskRef identifies a task in another project: "#<project-name>:<task-name>".
type TaskRef struct {
	Project string
	Task    string
}

// TaskGroup is a composite of task definitions: either sequential (an
// ordered list) or parallel (a name-keyed map). A group may itself carry
// dependencies.
type TaskGroup struct {
	Sequential []TaskDefinition
	Parallel   map[string]TaskDefinition

	DependsOn []string
}

// IsParallel reports whether this group is the parallel (map) variant.
func (g TaskGroup) IsParallel() bool {
	return g.Parallel != nil
}

// TaskDefinition is a tagged variant: exactly one of Single or Group is set.
type TaskDefinition struct {
	Single *Task
	Group  *TaskGroup
}

// IsGroup reports whether this definition wraps a TaskGroup.
func (d TaskDefinition) IsGroup() bool {
	return d.Group != nil
}

// IndexedTask is the result of flattening nested task definitions into a
// dotted name (C2).
type IndexedTask struct {
	Name       string
	Definition TaskDefinition
	SourceFile string
	IsGroup    bool
}

// CIConfig is a project's CI configuration: named pipelines + contributors.
type CIConfig struct {
	Pipelines    map[string]Pipeline
	Contributors []Contributor
	Provider     map[string]any
}

// Pipeline names a set of root tasks plus trigger and environment config.
type Pipeline struct {
	Name        string
	Tasks       []string
	Environment string
	When        *TriggerWhen
	DerivePaths *bool
}

// TriggerWhen is the raw, pre-lowering trigger declaration on a pipeline.
type TriggerWhen struct {
	Branch     []string
	PullRequest *bool
	Scheduled  []string
	Release    []string
	Manual     *ManualTrigger
}

// ManualTrigger is either a bare enabled flag or a set of named dispatch inputs.
type ManualTrigger struct {
	Enabled bool
	Inputs  map[string]WorkflowDispatchInput
}

// WorkflowDispatchInput describes one manual-trigger input.
type WorkflowDispatchInput struct {
	Description string
	Required    bool
	Default     string
	Type        string
	Options     []string
}

// Contributor is a plug-in task conditionally activated into the IR (C8).
type Contributor struct {
	ID         string
	Priority   int
	Condition  *ActivationCondition
	DependsOn  []string
	Command    []string
	Provider   ContributorProvider
}

// ActivationCondition is the boolean-and expression gating a contributor.
type ActivationCondition struct {
	Always          *bool
	RuntimeType     string
	SourceMode      string
	RequireSecret   bool
	ProviderKey     string
	CommandContains string
	RequiredLabels  []string
	PipelineEnv     string
	RequireWorkspace string
	OnFailure       bool
}

// ContributorProvider carries provider-specific lowering hints.
type ContributorProvider struct {
	GitHub map[string]any
}

// ExecutionState is a per-hook-invocation record (C7).
type ExecutionState struct {
	InstanceHash   string
	Directory      string
	ConfigHash     string
	Status         HookStatus
	Hooks          []HookResult
	Environment    map[string]string
	PreviousEnv    map[string]string
	StartedAt      time.Time
	FinishedAt     time.Time
	Error          string
}

// HookStatus is the lifecycle status of a hook execution.
type HookStatus string

const (
	HookPending   HookStatus = "pending"
	HookRunning   HookStatus = "running"
	HookCompleted HookStatus = "completed"
	HookFailed    HookStatus = "failed"
	HookCancelled HookStatus = "cancelled"
)

// HookResult is the outcome of one hook within an ExecutionState.
type HookResult struct {
	Name     string
	Source   bool
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// Value is a tagged environment value (spec.md §4.7). Exactly one of the
// variant fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind

	Str  string
	Int  int64
	Bool bool

	// Secret names a resolver descriptor; opaque to everything except the
	// configured secret resolver plug-in (out of scope: named interface only).
	Secret *SecretRef

	// Parts backs ValueInterpolated: an ordered list of literal strings and
	// secret references, concatenated after resolution.
	Parts []InterpolatedPart

	// Inner backs ValuePolicy: the wrapped value plus its access policies.
	Inner    *Value
	Policies []Policy
}

// ValueKind tags the variant of a Value.
type ValueKind string

const (
	ValueString      ValueKind = "string"
	ValueInt         ValueKind = "int"
	ValueBool        ValueKind = "bool"
	ValueSecret      ValueKind = "secret"
	ValueInterpolated ValueKind = "interpolated"
	ValuePolicy      ValueKind = "policy"
)

// SecretRef is an opaque descriptor a resolver plug-in turns into a string.
type SecretRef struct {
	Resolver string // e.g. "onepassword", "aws", "exec"
	Ref      string // resolver-specific reference (item id, ARN, command)
}

// InterpolatedPart is one literal-or-secret fragment of an interpolated value.
type InterpolatedPart struct {
	Literal string
	Secret  *SecretRef
}

// Policy gates access to a WithPolicies value to a set of tasks or to
// subprocess exec specifically.
type Policy struct {
	AllowTasks []string
	AllowExec  bool
}
