// Package hooksup implements C7: the detached hook supervisor protocol —
// instance-hash keyed state files, directory markers, idempotent detached
// spawn, per-hook execution with source-hook environment-delta capture,
// cancellation, and expiry-based querying.
package hooksup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("hooksup")

// SupervisorArg is the reserved CLI argument cuenv re-spawns itself with to
// enter supervisor mode (internal/cli wires this to a hidden cobra command).
const SupervisorArg = "__hook-supervisor"

// Hook is one directory-entry hook declaration.
type Hook struct {
	Command string
	Args    []string
	Script  string
	Source  bool
	Timeout time.Duration

	// Interactive routes execution through a pseudo-terminal instead of
	// plain pipes, for hooks that behave differently when they detect a
	// TTY (nix develop, devenv shell progress bars).
	Interactive bool
}

// Config is the per-invocation supervisor configuration.
type Config struct {
	Directory      string
	ConfigHash     string
	Hooks          []Hook
	PreviousEnv    map[string]string
	FailFast       bool
	DefaultTimeout time.Duration
}

// InstanceHash derives the instance identity from the directory and the
// manifest's content hash (spec.md §4.8 step 1).
func InstanceHash(directory, configHash string) string {
	sum := sha256.Sum256([]byte(directory + "\x00" + configHash))
	return hex.EncodeToString(sum[:])[:16]
}

// DirectoryHash derives the O(1) directory-marker key.
func DirectoryHash(directory string) string {
	sum := sha256.Sum256([]byte(directory))
	return hex.EncodeToString(sum[:])[:16]
}

// Paths resolves every on-disk path the supervisor protocol touches.
type Paths struct {
	StateDir string
}

func (p Paths) StateFile(instanceHash string) string {
	return filepath.Join(p.StateDir, instanceHash+".json")
}

func (p Paths) PIDFile(instanceHash string) string {
	return filepath.Join(p.StateDir, instanceHash+".pid")
}

func (p Paths) DirMarker(directory string) string {
	return filepath.Join(p.StateDir, "dirs", DirectoryHash(directory))
}

func (p Paths) LogFile(instanceHash string) string {
	return filepath.Join(p.StateDir, instanceHash+".log")
}

// SaveState persists state to its instance state file.
func SaveState(paths Paths, instanceHash string, state *model.ExecutionState) error {
	if err := os.MkdirAll(paths.StateDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("hooksup: marshal state: %w", err)
	}
	return os.WriteFile(paths.StateFile(instanceHash), data, 0o644)
}

// LoadState reads a previously persisted state, if any.
func LoadState(paths Paths, instanceHash string) (*model.ExecutionState, error) {
	data, err := os.ReadFile(paths.StateFile(instanceHash))
	if err != nil {
		return nil, err
	}
	var state model.ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("hooksup: unmarshal state: %w", err)
	}
	return &state, nil
}

// WriteDirMarker writes the O(1) directory->instance-hash marker.
func WriteDirMarker(paths Paths, directory, instanceHash string) error {
	marker := paths.DirMarker(directory)
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		return err
	}
	return os.WriteFile(marker, []byte(instanceHash), 0o644)
}

// ReadDirMarker resolves a directory's instance hash via its marker.
func ReadDirMarker(paths Paths, directory string) (string, error) {
	data, err := os.ReadFile(paths.DirMarker(directory))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsAlreadyRunning implements the idempotent-entry check: a live PID file
// means a supervisor for this instance is already running.
func IsAlreadyRunning(paths Paths, instanceHash string) bool {
	data, err := os.ReadFile(paths.PIDFile(instanceHash))
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// WritePIDFile records the supervisor's own PID.
func WritePIDFile(paths Paths, instanceHash string, pid int) error {
	if err := os.MkdirAll(paths.StateDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(paths.PIDFile(instanceHash), []byte(strconv.Itoa(pid)), 0o644)
}

// Cancel sends SIGTERM to a running supervisor (if alive), removes its PID
// file, and marks the persisted state Cancelled (spec.md §4.8 Cancellation).
func Cancel(paths Paths, instanceHash, reason string) error {
	pidData, err := os.ReadFile(paths.PIDFile(instanceHash))
	if err == nil {
		if pid, perr := strconv.Atoi(string(pidData)); perr == nil {
			_ = terminateProcess(pid)
		}
		_ = os.Remove(paths.PIDFile(instanceHash))
	}

	state, err := LoadState(paths, instanceHash)
	if err != nil {
		return fmt.Errorf("hooksup: load state for cancel: %w", err)
	}
	state.Status = model.HookCancelled
	state.Error = reason
	state.FinishedAt = nowFn()
	log.Printf("cancelled instance %s: %s", instanceHash, reason)
	return SaveState(paths, instanceHash, state)
}

// nowFn is indirected so tests can stub it out; production always uses
// time.Now.
var nowFn = time.Now

// Expired reports whether a completed/failed/cancelled state is older than
// maxAge and eligible for garbage collection (spec.md §4.8 Expiry).
func Expired(state *model.ExecutionState, maxAge time.Duration) bool {
	switch state.Status {
	case model.HookCompleted, model.HookFailed, model.HookCancelled:
	default:
		return false
	}
	if state.FinishedAt.IsZero() {
		return false
	}
	return nowFn().Sub(state.FinishedAt) > maxAge
}

// GC removes the state and directory-marker files for every expired
// instance found under paths.StateDir.
func GC(paths Paths, maxAge time.Duration) error {
	entries, err := os.ReadDir(paths.StateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		instanceHash := entry.Name()[:len(entry.Name())-len(".json")]
		state, err := LoadState(paths, instanceHash)
		if err != nil {
			continue
		}
		if !Expired(state, maxAge) {
			continue
		}
		_ = os.Remove(paths.StateFile(instanceHash))
		_ = os.Remove(paths.PIDFile(instanceHash))
		_ = removeDirMarkerFor(paths, state.Directory)
		log.Printf("garbage-collected expired instance %s", instanceHash)
	}
	return nil
}

func removeDirMarkerFor(paths Paths, directory string) error {
	if directory == "" {
		return nil
	}
	return os.Remove(paths.DirMarker(directory))
}

// QueryFast implements the fast-sync query path: stat the directory
// marker, resolve the instance hash, and load state without any cleanup
// side effects. A completed state older than displayWindow is treated as
// absent (spec.md §4.8 Querying).
func QueryFast(paths Paths, directory string, displayWindow time.Duration) (*model.ExecutionState, bool) {
	instanceHash, err := ReadDirMarker(paths, directory)
	if err != nil {
		return nil, false
	}
	state, err := LoadState(paths, instanceHash)
	if err != nil {
		return nil, false
	}
	if state.Status == model.HookCompleted && nowFn().Sub(state.FinishedAt) > displayWindow {
		return nil, false
	}
	return state, true
}

// QueryAsync is QueryFast plus, when the resolved instance is expired, a GC
// pass over every expired instance in the state directory.
func QueryAsync(paths Paths, directory string, displayWindow, maxAge time.Duration) (*model.ExecutionState, bool) {
	state, ok := QueryFast(paths, directory, displayWindow)
	if ok && Expired(state, maxAge) {
		_ = GC(paths, maxAge)
		return nil, false
	}
	return state, ok
}
