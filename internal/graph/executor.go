package graph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
	"github.com/sourcegraph/conc/pool"
)

var log = logger.New("graph")

// EventKind names one of the three events the executor emits per task.
type EventKind string

const (
	EventStarted   EventKind = "task_started"
	EventOutput    EventKind = "task_output"
	EventCompleted EventKind = "task_completed"
)

// Event is one executor lifecycle notification (spec.md §4.6).
type Event struct {
	Kind         EventKind
	Task         string
	CommandLine  string
	Hermetic     bool
	Stream       string // "stdout" | "stderr", set only for EventOutput
	Line         string
	Success      bool
	ExitCode     int
	Duration     time.Duration
}

// TaskFailure is the structured summary returned when a task fails.
type TaskFailure struct {
	Task     string
	ExitCode int
	Tail     []string // last N lines of combined stdout/stderr
}

func (f *TaskFailure) Error() string {
	return fmt.Sprintf("graph: task %q failed with exit code %d", f.Task, f.ExitCode)
}

// Options configures a single Run.
type Options struct {
	// Concurrency caps in-flight tasks per level; 0 means unlimited.
	Concurrency int
	// TailLines bounds the captured output tail on failure (default 20).
	TailLines int
	// Capture, when true, pipes output line-by-line through Events instead
	// of inheriting the terminal.
	Capture bool
	// ModuleRoot is used to resolve the explicit directory field.
	ModuleRoot string
	// Env is the configured overlay; merged over the system environment,
	// overlay wins (spec.md §4.6).
	Env map[string]string
	// Events receives lifecycle notifications; nil disables emission.
	Events chan<- Event
}

func (o Options) tailLines() int {
	if o.TailLines <= 0 {
		return 20
	}
	return o.TailLines
}

// Run executes reg's graph level by level, aborting in-flight tasks in the
// current level and discarding remaining levels on the first failure.
func Run(ctx context.Context, reg Registry, opts Options) error {
	if name, ok := IsSingleTask(reg); ok {
		log.Printf("single-task fast path for %q", name)
		return runTask(ctx, reg[name], opts)
	}

	g, err := Build(reg)
	if err != nil {
		return err
	}

	for levelIdx, level := range g.Levels() {
		log.Printf("starting level %d with %d tasks", levelIdx, len(level))

		levelCtx, cancel := context.WithCancel(ctx)
		p := pool.NewWithResults[levelResult]().
			WithContext(levelCtx).
			WithCancelOnError().
			WithMaxGoroutines(maxGoroutines(opts.Concurrency, len(level)))

		for _, name := range level {
			name := name
			task := reg[name]
			p.Go(func(gctx context.Context) (levelResult, error) {
				err := runTask(gctx, task, opts)
				return levelResult{name: name, err: err}, err
			})
		}

		results, _ := p.Wait()
		cancel()

		for _, r := range results {
			if r.err != nil {
				return r.err
			}
		}
	}
	return nil
}

type levelResult struct {
	name string
	err  error
}

func maxGoroutines(ceiling, levelSize int) int {
	if ceiling <= 0 {
		return levelSize
	}
	if ceiling < levelSize {
		return ceiling
	}
	return levelSize
}

// runTask executes a single task to completion under the non-hermetic host
// path (spec.md §4.6 "Task execution contract").
func runTask(ctx context.Context, t *model.Task, opts Options) error {
	dir, err := resolveWorkingDirectory(t, opts.ModuleRoot)
	if err != nil {
		return fmt.Errorf("graph: resolve directory for %q: %w", t.Name, err)
	}

	commandLine, cmd, err := buildCommand(ctx, t, dir, opts)
	if err != nil {
		return err
	}

	emit(opts, Event{Kind: EventStarted, Task: t.Name, CommandLine: commandLine, Hermetic: t.Hermetic})
	start := time.Now()

	var tail *tailBuffer
	if opts.Capture {
		tail = newTailBuffer(opts.tailLines())
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return err
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go streamLines(&wg, stdout, "stdout", t.Name, opts, tail)
		go streamLines(&wg, stderr, "stderr", t.Name, opts, tail)
		wg.Wait()

		err = cmd.Wait()
		return finish(t, start, err, tail, opts)
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	err = cmd.Run()
	return finish(t, start, err, nil, opts)
}

func finish(t *model.Task, start time.Time, runErr error, tail *tailBuffer, opts Options) error {
	duration := time.Since(start)
	exitCode := 0
	success := runErr == nil
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	emit(opts, Event{Kind: EventCompleted, Task: t.Name, Success: success, ExitCode: exitCode, Duration: duration})

	if runErr == nil {
		return nil
	}

	var lines []string
	if tail != nil {
		lines = tail.Lines()
	}
	return &TaskFailure{Task: t.Name, ExitCode: exitCode, Tail: lines}
}

func streamLines(wg *sync.WaitGroup, r io.Reader, stream, taskName string, opts Options, tail *tailBuffer) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		tail.Add(line)
		emit(opts, Event{Kind: EventOutput, Task: taskName, Stream: stream, Line: line})
	}
}

func emit(opts Options, e Event) {
	if opts.Events == nil {
		return
	}
	select {
	case opts.Events <- e:
	default:
	}
}

func buildCommand(ctx context.Context, t *model.Task, dir string, opts Options) (string, *exec.Cmd, error) {
	var cmd *exec.Cmd
	var commandLine string

	switch {
	case t.Script != "":
		shell := t.Shell
		if shell == nil {
			shell = &model.ShellOverride{Command: "/bin/sh", Flag: "-c"}
		}
		cmd = exec.CommandContext(ctx, shell.Command, shell.Flag, t.Script)
		commandLine = t.Script
	case t.Command != "":
		cmd = exec.CommandContext(ctx, t.Command, t.Args...)
		commandLine = strings.Join(append([]string{t.Command}, t.Args...), " ")
	default:
		return "", nil, fmt.Errorf("graph: task %q has neither command nor script", t.Name)
	}

	cmd.Dir = dir
	cmd.Env = composeEnv(opts.Env)
	return commandLine, cmd, nil
}

// composeEnv merges the configured overlay over the system environment;
// overlay entries win (spec.md §4.6).
func composeEnv(overlay map[string]string) []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// resolveWorkingDirectory implements the priority order from spec.md §4.6:
// explicit directory -> project_root -> source file's directory -> workspace
// root (last-resort fallback, non-hermetic workspace-bearing tasks only) ->
// module root. A cross-project cloned task always carries a ProjectRoot
// (the referenced project's root, not the workspace's), so that field takes
// priority over workspace-root whenever it is set; workspace-root is only
// ever consulted once directory, project_root, and source file are all
// unset.
func resolveWorkingDirectory(t *model.Task, moduleRoot string) (string, error) {
	if t.Directory != "" {
		return filepath.Join(moduleRoot, t.Directory), nil
	}
	if t.ProjectRoot != "" {
		return t.ProjectRoot, nil
	}
	if t.SourceFile != "" {
		return filepath.Dir(filepath.Join(moduleRoot, t.SourceFile)), nil
	}
	if !t.Hermetic && len(t.Workspaces) > 0 {
		if root, ok := findWorkspaceRoot(moduleRoot); ok {
			return root, nil
		}
	}
	return moduleRoot, nil
}

// findWorkspaceRoot walks up from start looking for one of the four
// package-manager workspace markers this toolchain recognizes.
func findWorkspaceRoot(start string) (string, bool) {
	dir := start
	for {
		if hasPackageJSONWorkspaces(dir) || fileExists(filepath.Join(dir, "pnpm-workspace.yaml")) ||
			hasCargoWorkspace(dir) || hasDenoWorkspace(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasPackageJSONWorkspaces(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), `"workspaces"`)
}

func hasCargoWorkspace(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "[workspace]")
}

func hasDenoWorkspace(dir string) bool {
	for _, name := range []string{"deno.json", "deno.jsonc"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if strings.Contains(string(data), `"workspace"`) {
			return true
		}
	}
	return false
}

// tailBuffer keeps only the last N lines seen, for TaskFailure reporting.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
