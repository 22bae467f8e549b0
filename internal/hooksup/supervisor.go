package hooksup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/stringutil"
)

// maxPersistedHookOutput bounds how much of a hook's stdout/stderr is kept
// in ExecutionState; long-running interactive hooks can emit megabytes that
// would otherwise bloat the on-disk state file.
const maxPersistedHookOutput = 16 * 1024

// Spawn launches a detached supervisor process, invoking execPath with
// SupervisorArg, the instance hash, and the paths of the config and hooks
// files, which the caller has already written to tmpConfigPath and
// tmpHooksPath (spec.md §4.8 step 2). It is a no-op if a
// supervisor for this instance is already running (step 3).
func Spawn(paths Paths, execPath string, instanceHash, tmpConfigPath, tmpHooksPath string) error {
	if IsAlreadyRunning(paths, instanceHash) {
		log.Printf("instance %s already has a live supervisor, skipping spawn", instanceHash)
		return nil
	}

	if err := os.MkdirAll(paths.StateDir, 0o755); err != nil {
		return err
	}
	logFile, err := os.Create(paths.LogFile(instanceHash))
	if err != nil {
		return fmt.Errorf("hooksup: create supervisor log: %w", err)
	}

	cmd := exec.Command(execPath, SupervisorArg, instanceHash, tmpConfigPath, tmpHooksPath)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("hooksup: spawn supervisor: %w", err)
	}
	log.Printf("spawned detached supervisor pid=%d instance=%s", cmd.Process.Pid, instanceHash)

	// The supervisor writes its own PID file once it has daemonized; the
	// caller does not wait for the child.
	return cmd.Process.Release()
}

// RunSupervisor is the body of the `__hook-supervisor` entry point: it
// writes its PID, changes into the target directory, and executes hooks in
// declared order (spec.md §4.8 step 4).
func RunSupervisor(ctx context.Context, paths Paths, instanceHash string, cfg Config) error {
	if err := WritePIDFile(paths, instanceHash, os.Getpid()); err != nil {
		return fmt.Errorf("hooksup: write pid file: %w", err)
	}

	state := &model.ExecutionState{
		InstanceHash: instanceHash,
		Directory:    cfg.Directory,
		ConfigHash:   cfg.ConfigHash,
		Status:       model.HookRunning,
		PreviousEnv:  cfg.PreviousEnv,
		Environment:  map[string]string{},
		StartedAt:    nowFn(),
	}
	if err := SaveState(paths, instanceHash, state); err != nil {
		return err
	}
	if err := WriteDirMarker(paths, cfg.Directory, instanceHash); err != nil {
		return err
	}

	prevDir, err := os.Getwd()
	if err == nil {
		defer os.Chdir(prevDir)
	}
	if err := os.Chdir(cfg.Directory); err != nil {
		return fmt.Errorf("hooksup: chdir %s: %w", cfg.Directory, err)
	}

	for _, hook := range cfg.Hooks {
		result := runHook(ctx, hook, cfg.DefaultTimeout)
		state.Hooks = append(state.Hooks, result.HookResult)
		for k, v := range result.environmentDelta {
			state.Environment[k] = v
		}
		if err := SaveState(paths, instanceHash, state); err != nil {
			return err
		}
		if !result.Success && cfg.FailFast {
			state.Status = model.HookFailed
			state.Error = result.Error
			state.FinishedAt = nowFn()
			return SaveState(paths, instanceHash, state)
		}
	}

	if state.Status == model.HookRunning {
		state.Status = model.HookCompleted
		state.FinishedAt = nowFn()
	}
	return SaveState(paths, instanceHash, state)
}

// hookRunResult extends model.HookResult with the raw environment delta,
// which is folded into the parent ExecutionState but not persisted
// per-hook (only the aggregate state.Environment is).
type hookRunResult struct {
	model.HookResult
	environmentDelta map[string]string
}

func runHook(parent context.Context, hook Hook, defaultTimeout time.Duration) hookRunResult {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	name := hook.Command
	if hook.Script != "" {
		name = "script"
	}

	if hook.Source {
		delta, err := EvaluateShellEnvironment(ctx, hook.Script, fileExists)
		result := model.HookResult{
			Name:     name,
			Source:   true,
			Success:  err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Error = stringutil.SanitizeErrorMessage(err.Error())
		}
		return hookRunResult{HookResult: result, environmentDelta: delta}
	}

	var output string
	var runErr error
	if hook.Interactive {
		output, runErr = runInteractive(ctx, hook.Command, hook.Args)
	} else {
		var cmd *exec.Cmd
		if hook.Script != "" {
			cmd = exec.CommandContext(ctx, "sh", "-c", hook.Script)
		} else {
			cmd = exec.CommandContext(ctx, hook.Command, hook.Args...)
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		runErr = cmd.Run()
		output = out.String()
	}

	result := model.HookResult{
		Name:     name,
		Source:   false,
		Success:  runErr == nil,
		Output:   stringutil.Truncate(stringutil.SanitizeErrorMessage(output), maxPersistedHookOutput),
		Duration: time.Since(start),
	}
	if runErr != nil {
		result.Error = stringutil.SanitizeErrorMessage(runErr.Error())
	}
	return hookRunResult{HookResult: result}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
