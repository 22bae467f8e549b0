package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/envmodel"
	"github.com/cuenv/cuenv/internal/graph"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/console"
	"github.com/spf13/cobra"
)

type taskFlags struct {
	path               string
	pkg                string
	env                string
	outputFormat       string
	materializeOutputs string
	showCachePath      bool
	backend            string
	tui                bool
	labels             []string
	all                bool
}

// NewTaskCommand builds the `task` command (spec.md §6).
func NewTaskCommand() *cobra.Command {
	flags := &taskFlags{}

	cmd := &cobra.Command{
		Use:   "task [NAME] [-- ARGS...]",
		Short: "Run one or more tasks",
		Long: `Run a task by name, or with --all/--label select and run every
task matching a set of labels.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before, after := splitArgs(args)
			return runTaskCommand(cmd, before, after, flags)
		},
	}

	cmd.Flags().StringVar(&flags.path, "path", "", "project path relative to the module root")
	cmd.Flags().StringVar(&flags.pkg, "package", "", "project name")
	cmd.Flags().StringVar(&flags.env, "env", "", "named environment override to apply")
	cmd.Flags().StringVar(&flags.outputFormat, "output-format", "simple", "simple|rich|text|json")
	cmd.Flags().StringVar(&flags.materializeOutputs, "materialize-outputs", "", "directory to copy declared task outputs into")
	cmd.Flags().BoolVar(&flags.showCachePath, "show-cache-path", false, "print the would-be cache key and exit")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "execution backend override")
	cmd.Flags().BoolVar(&flags.tui, "tui", false, "render a live TUI instead of plain log output")
	cmd.Flags().StringArrayVar(&flags.labels, "label", nil, "required label, repeatable")
	cmd.Flags().BoolVar(&flags.all, "all", false, "run every task matching --label instead of a single named task")

	cmd.AddCommand(newTaskListCommand())

	return cmd
}

// newTaskListCommand builds `task list`, a read-only counterpart to `env
// list` that renders the project's flattened task index as a table.
func newTaskListCommand() *cobra.Command {
	var path, pkg string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every indexed task, its kind, and its labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			mc, err := loadModule(cwd)
			if err != nil {
				return err
			}
			project, _, err := mc.resolveProject(path, pkg)
			if err != nil {
				return err
			}
			idx, err := buildIndex(project)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(idx.List()))
			for _, it := range idx.List() {
				kind := "task"
				if it.IsGroup {
					kind = "group"
				}
				rows = append(rows, []string{it.Name, kind, labelList(it.Definition.Single)})
			}

			fmt.Fprint(cmd.OutOrStdout(), console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("%s tasks", project.Name),
				Headers: []string{"NAME", "KIND", "LABELS"},
				Rows:    rows,
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "project path relative to the module root")
	cmd.Flags().StringVar(&pkg, "package", "", "project name")
	return cmd
}

// labelList renders a single task's labels as a sorted, comma-joined string;
// group entries (task == nil) have none of their own.
func labelList(task *model.Task) string {
	if task == nil || len(task.Labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(task.Labels))
	for l := range task.Labels {
		names = append(names, l)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func runTaskCommand(cmd *cobra.Command, args, taskArgs []string, flags *taskFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	mc, err := loadModule(cwd)
	if err != nil {
		return err
	}
	project, _, err := mc.resolveProject(flags.path, flags.pkg)
	if err != nil {
		return err
	}
	idx, err := buildIndex(project)
	if err != nil {
		return err
	}

	var roots []string
	if flags.all || len(flags.labels) > 0 {
		for _, it := range idx.List() {
			if it.IsGroup || it.Definition.Single == nil {
				continue
			}
			if labelMatch(it.Definition.Single, flags.labels) {
				roots = append(roots, it.Name)
			}
		}
		if len(roots) == 0 {
			return fmt.Errorf("task: no tasks matched labels %v", flags.labels)
		}
	} else {
		if len(args) == 0 {
			return fmt.Errorf("task: a task name is required (or pass --all)")
		}
		roots = []string{args[0]}
	}

	reg, err := closure(idx, roots)
	if err != nil {
		return err
	}

	envTable := project.Env
	resolved := envmodel.ForEnvironment(envTable, flags.env)
	resolver := &externalSecretResolver{}

	overlay := map[string]string{}
	for name, task := range reg {
		taskEnv, secrets, err := envmodel.ResolveForTask(mergeEnv(resolved, task.Env), name, resolver)
		if err != nil {
			return err
		}
		for _, s := range secrets {
			redactionTable.Register(s)
		}
		for k, v := range taskEnv {
			overlay[k] = v
		}
	}

	if flags.showCachePath {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", cachePathFor(reg, roots))
		return nil
	}

	ggRegistry := graph.Registry(reg)
	opts := graph.Options{
		ModuleRoot: mc.root,
		Env:        overlay,
	}

	if flags.outputFormat == "json" {
		events := make(chan graph.Event, 64)
		opts.Events = events
		opts.Capture = true
		done := make(chan error, 1)
		go func() {
			err := graph.Run(cmd.Context(), ggRegistry, opts)
			close(events)
			done <- err
		}()
		enc := json.NewEncoder(cmd.OutOrStdout())
		for ev := range events {
			_ = enc.Encode(ev)
		}
		return <-done
	}

	if taskArgs != nil {
		log.Printf("passthrough args %v are only honored by single-task commands", taskArgs)
	}
	return graph.Run(cmd.Context(), ggRegistry, opts)
}

func mergeEnv(base map[string]model.Value, overrides map[string]model.Value) map[string]model.Value {
	merged := make(map[string]model.Value, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func cachePathFor(reg map[string]*model.Task, roots []string) string {
	return fmt.Sprintf("cuenv-task-%s", joinOrDash(roots))
}

// externalSecretResolver documents the C6 boundary: credential resolver
// plug-ins (1Password, AWS, exec-based) are named interfaces only
// (spec.md §1); this binary ships no concrete implementation.
type externalSecretResolver struct{}

func (externalSecretResolver) Resolve(ref model.SecretRef) (string, error) {
	return "", fmt.Errorf("envmodel: secret resolver %q is not built into this binary (external collaborator)", ref.Resolver)
}
