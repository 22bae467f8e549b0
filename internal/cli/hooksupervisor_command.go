package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cuenv/cuenv/internal/hooksup"
	"github.com/spf13/cobra"
)

func timeDurationFromNanos(n int64) time.Duration { return time.Duration(n) }

// hookSupervisorConfigFile is the on-disk shape of Spawn's tmpConfigPath:
// everything in hooksup.Config except the hook list, which tmpHooksPath
// carries separately, matching Spawn's two-path signature
// (internal/hooksup/supervisor.go).
type hookSupervisorConfigFile struct {
	Directory      string            `json:"directory"`
	ConfigHash     string            `json:"configHash"`
	PreviousEnv    map[string]string `json:"previousEnv"`
	FailFast       bool              `json:"failFast"`
	DefaultTimeout int64             `json:"defaultTimeoutNanos"`
}

// NewHookSupervisorCommand builds the hidden `__hook-supervisor` entry
// point cuenv re-execs itself with (spec.md §6, internal/hooksup's
// SupervisorArg).
func NewHookSupervisorCommand() *cobra.Command {
	return &cobra.Command{
		Use:    hooksup.SupervisorArg + " INSTANCE_HASH CONFIG_FILE HOOKS_FILE",
		Hidden: true,
		Args:   cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceHash, configPath, hooksPath := args[0], args[1], args[2]

			configData, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("hook-supervisor: read config file: %w", err)
			}
			var cfgFile hookSupervisorConfigFile
			if err := json.Unmarshal(configData, &cfgFile); err != nil {
				return fmt.Errorf("hook-supervisor: decode config file: %w", err)
			}

			hooksData, err := os.ReadFile(hooksPath)
			if err != nil {
				return fmt.Errorf("hook-supervisor: read hooks file: %w", err)
			}
			var hooks []hooksup.Hook
			if err := json.Unmarshal(hooksData, &hooks); err != nil {
				return fmt.Errorf("hook-supervisor: decode hooks file: %w", err)
			}

			cfg := hooksup.Config{
				Directory:      cfgFile.Directory,
				ConfigHash:     cfgFile.ConfigHash,
				Hooks:          hooks,
				PreviousEnv:    cfgFile.PreviousEnv,
				FailFast:       cfgFile.FailFast,
				DefaultTimeout: timeDurationFromNanos(cfgFile.DefaultTimeout),
			}

			return hooksup.RunSupervisor(cmd.Context(), hookPaths(), instanceHash, cfg)
		},
	}
}

// NewCoordinatorCommand builds the hidden `__coordinator` entry point
// (spec.md §6). The multi-process event-coordination server this backs in
// the source this spec was distilled from (original_source/crates/cuenv's
// coordinator package, fanning supervisor/task events out to TUI
// consumers) has no analog in this port: its event sink is the in-process
// graph.Event channel (C5), not a cross-process bus, so this reserves the
// subcommand name without a cross-process implementation.
func NewCoordinatorCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "__coordinator",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("cuenv: __coordinator is reserved but not implemented by this binary")
		},
	}
}
