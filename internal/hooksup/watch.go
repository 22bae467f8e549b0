package hooksup

import (
	"context"
	"time"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/fsnotify/fsnotify"
)

// Wait blocks until the instance's state file reaches a terminal status
// (Completed/Failed/Cancelled), the context is cancelled, or pollInterval
// elapses without a filesystem event, in which case it falls back to a
// direct state read. Used by `cuenv env status --wait`.
func Wait(ctx context.Context, paths Paths, instanceHash string, pollInterval time.Duration) (*model.ExecutionState, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer watcher.Close()

	if err := watcher.Add(paths.StateDir); err != nil {
		return nil, err
	}

	stateFile := paths.StateFile(instanceHash)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if state, err := LoadState(paths, instanceHash); err == nil && isTerminal(state.Status) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, nil
			}
			if event.Name != stateFile {
				continue
			}
		case <-ticker.C:
			// Fall through to re-check state directly; some filesystems
			// (notably network mounts) don't emit reliable write events.
		}
	}
}

func isTerminal(status model.HookStatus) bool {
	switch status {
	case model.HookCompleted, model.HookFailed, model.HookCancelled:
		return true
	}
	return false
}
