package ci

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/internal/taskindex"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("ci")

// IRVersion is the schema version this compiler emits.
const IRVersion = "1.5"

// implicitInputs are always added to a pipeline's trigger paths, regardless
// of what the constituent tasks declare (spec.md §4.9).
var implicitInputs = []string{"env.cue", "schema/**"}

// Options is the compiler-options record supplied per compilation
// (spec.md §4.9 Input).
type Options struct {
	DefaultCachePolicy model.CachePolicy
	ModuleRoot         string
	// ProjectPath is relative to ModuleRoot; "." means the project IS the
	// module root.
	ProjectPath string
	CIMode      bool
}

// Compile lowers project's selected pipeline into an IR v1.5 record.
func Compile(project *model.Project, idx *taskindex.Index, pipelineName string, opts Options) (*IR, error) {
	if project.CI == nil {
		return nil, fmt.Errorf("ci: project %q has no CI configuration", project.Name)
	}
	pipeline, ok := project.CI.Pipelines[pipelineName]
	if !ok {
		return nil, fmt.Errorf("ci: unknown pipeline %q", pipelineName)
	}

	ir := &IR{Version: IRVersion}
	ir.Pipeline = PipelineIR{
		Name:        project.Name,
		Environment: pipeline.Environment,
		Tasks:       append([]string{}, pipeline.Tasks...),
	}
	ir.Pipeline.Trigger = buildTrigger(pipeline, idx, opts)

	if err := lowerTasks(ir, idx, opts); err != nil {
		return nil, err
	}

	if err := lowerContributors(ir, project, idx, opts); err != nil {
		return nil, err
	}

	if opts.CIMode {
		applyArtifactDownloads(ir)
	}

	if errs := Validate(ir); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	log.Printf("compiled pipeline %q for project %q: %d tasks", pipelineName, project.Name, len(ir.Tasks))
	return ir, nil
}

func buildTrigger(pipeline model.Pipeline, idx *taskindex.Index, opts Options) TriggerIR {
	when := pipeline.When
	trigger := TriggerIR{}
	if when == nil {
		when = &model.TriggerWhen{}
	}

	trigger.Branches = append([]string{}, when.Branch...)
	trigger.PullRequest = when.PullRequest
	trigger.Scheduled = append([]string{}, when.Scheduled...)
	trigger.Release = append([]string{}, when.Release...)

	if when.Manual != nil {
		manual := &ManualTriggerIR{Enabled: when.Manual.Enabled, Inputs: map[string]WorkflowDispatchInputIR{}}
		for name, in := range when.Manual.Inputs {
			manual.Inputs[name] = WorkflowDispatchInputIR{
				Description: in.Description,
				Required:    in.Required,
				Default:     in.Default,
				Type:        in.Type,
				Options:     append([]string{}, in.Options...),
			}
		}
		if len(when.Manual.Inputs) > 0 {
			manual.Enabled = true
		}
		trigger.Manual = manual
	}

	shouldDerivePaths := len(trigger.Branches) > 0 || trigger.PullRequest != nil
	if pipeline.DerivePaths != nil {
		shouldDerivePaths = *pipeline.DerivePaths
	}
	if shouldDerivePaths {
		trigger.Paths = deriveTriggerPaths(pipeline, idx, opts)
	}
	return trigger
}

// deriveTriggerPaths implements the recursive input-collection algorithm
// from original_source's derive_trigger_paths: gather every path-input of
// every pipeline task (transitively through local dependencies), prefix by
// project path, fall back to "<project-path>/**" when empty, and always
// add the implicit CUE inputs.
func deriveTriggerPaths(pipeline model.Pipeline, idx *taskindex.Index, opts Options) []string {
	seen := map[string]struct{}{}
	inputs := map[string]struct{}{}

	var collect func(name string)
	collect = func(name string) {
		if _, done := seen[name]; done {
			return
		}
		seen[name] = struct{}{}

		it, ok := idx.Resolve(name)
		if !ok || it.Definition.Single == nil {
			return
		}
		for _, in := range it.Definition.Single.Inputs {
			inputs[in] = struct{}{}
		}
		for _, dep := range it.Definition.Single.DependsOn {
			if !strings.HasPrefix(dep, "task:") {
				collect(dep)
			}
		}
	}
	for _, taskName := range pipeline.Tasks {
		collect(taskName)
	}

	prefix := func(p string) string {
		if opts.ProjectPath == "" || opts.ProjectPath == "." {
			return p
		}
		return opts.ProjectPath + "/" + p
	}

	paths := map[string]struct{}{}
	for in := range inputs {
		paths[prefix(in)] = struct{}{}
	}
	if len(inputs) == 0 {
		if opts.ProjectPath == "" || opts.ProjectPath == "." {
			paths["**"] = struct{}{}
		} else {
			paths[opts.ProjectPath+"/**"] = struct{}{}
		}
	}
	for _, implicit := range implicitInputs {
		paths[prefix(implicit)] = struct{}{}
	}
	paths["cue.mod/**"] = struct{}{}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func lowerTasks(ir *IR, idx *taskindex.Index, opts Options) error {
	for _, it := range idx.List() {
		if it.Definition.Single == nil {
			continue
		}
		t := it.Definition.Single

		taskIR := TaskIR{
			ID:        it.Name,
			DependsOn: append([]string{}, t.DependsOn...),
			Outputs:   append([]string{}, t.Outputs...),
		}

		switch {
		case t.Command != "":
			taskIR.Command = append([]string{t.Command}, t.Args...)
		case t.Script != "":
			taskIR.Command = []string{"/bin/sh", "-c", t.Script}
			taskIR.Shell = true
		default:
			return fmt.Errorf("ci: task %q has neither command nor script", it.Name)
		}

		taskIR.Env = lowerEnv(t.Env)

		_, isDeployment := t.Labels["deployment"]
		taskIR.Deployment = isDeployment
		taskIR.CachePolicy = CacheDisabled
		if !isDeployment {
			if opts.DefaultCachePolicy == model.CacheEnabled {
				taskIR.CachePolicy = CacheEnabled
			}
		}

		if opts.CIMode {
			taskIR.OutputType = OutputOrchestrator
		} else {
			taskIR.OutputType = OutputCas
		}

		for _, ref := range t.TaskInputs {
			dotted := ref.Project + "." + ref.Task
			taskIR.Downloads = append(taskIR.Downloads, ArtifactDownload{
				Name: strings.ReplaceAll(dotted, ".", "-") + "-artifacts",
				Path: strings.ReplaceAll(dotted, ".", "/"),
			})
		}

		ir.Tasks = append(ir.Tasks, taskIR)
	}
	return nil
}

func lowerEnv(env map[string]model.Value) []EnvEntryIR {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []EnvEntryIR
	for _, k := range keys {
		v := env[k]
		switch v.Kind {
		case model.ValueString:
			out = append(out, EnvEntryIR{Key: k, Value: v.Str})
		case model.ValueInt:
			out = append(out, EnvEntryIR{Key: k, Value: strconv.FormatInt(v.Int, 10)})
		case model.ValueBool:
			out = append(out, EnvEntryIR{Key: k, Value: strconv.FormatBool(v.Bool)})
		default:
			// Secrets and interpolated values are not string literals;
			// they are resolved at execution time, not lowering time.
		}
	}
	return out
}

// applyArtifactDownloads is the post-pass that replaces each download's
// path with the first declared output of the upstream task it names.
func applyArtifactDownloads(ir *IR) {
	byID := make(map[string]*TaskIR, len(ir.Tasks))
	for i := range ir.Tasks {
		byID[ir.Tasks[i].ID] = &ir.Tasks[i]
	}

	for i := range ir.Tasks {
		for j, dl := range ir.Tasks[i].Downloads {
			upstreamID := strings.ReplaceAll(dl.Path, "/", ".")
			upstream, ok := byID[upstreamID]
			if !ok || len(upstream.Outputs) == 0 {
				continue
			}
			ir.Tasks[i].Downloads[j].Path = upstream.Outputs[0]
		}
	}
}

// ActivationInputs is everything an activation condition needs to evaluate
// (spec.md §4.9).
type ActivationInputs struct {
	RuntimeType       string
	SourceMode        string
	Env               map[string]model.Value
	ProviderConfig    map[string]any
	PipelineTasks     []*model.Task
	PipelineEnv       string
	WorkspaceMembers  map[string]bool
}

func lowerContributors(ir *IR, project *model.Project, idx *taskindex.Index, opts Options) error {
	if project.CI == nil {
		return nil
	}
	inputs := ActivationInputs{
		ProviderConfig: project.CI.Provider,
		PipelineEnv:    ir.Pipeline.Environment,
	}
	for _, t := range ir.Pipeline.Tasks {
		if it, ok := idx.Resolve(t); ok && it.Definition.Single != nil {
			inputs.PipelineTasks = append(inputs.PipelineTasks, it.Definition.Single)
		}
	}
	if project.Runtime != nil {
		inputs.RuntimeType = project.Runtime.Flake
	}

	for _, contributor := range project.CI.Contributors {
		active, err := evaluateActivation(contributor.Condition, inputs)
		if err != nil {
			return fmt.Errorf("ci: contributor %q: %w", contributor.ID, err)
		}
		if !active {
			continue
		}

		id := "cuenv:contributor:" + contributor.ID
		deps := make([]string, len(contributor.DependsOn))
		for i, d := range contributor.DependsOn {
			deps[i] = "cuenv:contributor:" + d
		}

		phase := derivePhase(contributor.Priority)
		if contributor.Condition != nil && contributor.Condition.OnFailure {
			phase = PhaseFailure
		}

		ir.Tasks = append(ir.Tasks, TaskIR{
			ID:           id,
			Command:      contributor.Command,
			DependsOn:    deps,
			CachePolicy:  CacheDisabled,
			OutputType:   OutputOrchestrator,
			Phase:        phase,
			GitHubAction: contributor.Provider.GitHub,
		})
	}
	return nil
}

// derivePhase maps a contributor's priority into a coarse execution phase:
// 0-9 Bootstrap, 10-49 Setup, 50+ Success.
func derivePhase(priority int) Phase {
	switch {
	case priority < 10:
		return PhaseBootstrap
	case priority < 50:
		return PhaseSetup
	default:
		return PhaseSuccess
	}
}

func evaluateActivation(cond *model.ActivationCondition, in ActivationInputs) (bool, error) {
	if cond == nil {
		return true, nil
	}
	if cond.Always != nil {
		return *cond.Always, nil
	}

	if cond.RuntimeType != "" && cond.RuntimeType != in.RuntimeType {
		return false, nil
	}
	if cond.SourceMode != "" && cond.SourceMode != in.SourceMode {
		return false, nil
	}
	if cond.RequireSecret {
		if !hasSecretValue(in.Env) {
			return false, nil
		}
	}
	if cond.ProviderKey != "" {
		if !probeDottedKey(in.ProviderConfig, cond.ProviderKey) {
			return false, nil
		}
	}
	if cond.CommandContains != "" {
		if !anyTaskCommandContains(in.PipelineTasks, cond.CommandContains) {
			return false, nil
		}
	}
	if len(cond.RequiredLabels) > 0 {
		if !anyTaskHasAllLabels(in.PipelineTasks, cond.RequiredLabels) {
			return false, nil
		}
	}
	if cond.PipelineEnv != "" && cond.PipelineEnv != in.PipelineEnv {
		return false, nil
	}
	if cond.RequireWorkspace != "" {
		if !in.WorkspaceMembers[cond.RequireWorkspace] {
			return false, nil
		}
	}
	return true, nil
}

func hasSecretValue(env map[string]model.Value) bool {
	for _, v := range env {
		if v.Kind == model.ValueSecret {
			return true
		}
		if v.Kind == model.ValueInterpolated {
			for _, part := range v.Parts {
				if part.Secret != nil {
					return true
				}
			}
		}
	}
	return false
}

func probeDottedKey(config map[string]any, dotted string) bool {
	parts := strings.Split(dotted, ".")
	var cur any = config
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		v, ok := m[part]
		if !ok {
			return false
		}
		cur = v
	}
	return true
}

func anyTaskCommandContains(tasks []*model.Task, substr string) bool {
	for _, t := range tasks {
		haystack := t.Command
		if haystack == "" {
			haystack = t.Script
		}
		if strings.Contains(haystack, substr) {
			return true
		}
	}
	return false
}

func anyTaskHasAllLabels(tasks []*model.Task, labels []string) bool {
	for _, t := range tasks {
		ok := true
		for _, l := range labels {
			if _, has := t.Labels[l]; !has {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
