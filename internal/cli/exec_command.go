package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/cuenv/cuenv/internal/envmodel"
	"github.com/spf13/cobra"
)

// NewExecCommand builds the `exec` command (spec.md §6): runs CMD with the
// composed environment overlaid onto the inherited process environment.
func NewExecCommand() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:                "exec CMD [ARGS...]",
		Short:              "Run a command with the composed environment",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && args[0] == "--" {
				args = args[1:]
			}
			if len(args) == 0 {
				return fmt.Errorf("exec: a command is required")
			}
			resolved, err := loadProjectEnv(envName)
			if err != nil {
				return err
			}

			overlay := os.Environ()
			overlayMap := map[string]string{}
			for _, kv := range overlay {
				for i := 0; i < len(kv); i++ {
					if kv[i] == '=' {
						overlayMap[kv[:i]] = kv[i+1:]
						break
					}
				}
			}
			for k, v := range resolved {
				overlayMap[k] = v
			}

			target, err := envmodel.ResolveCommand(args[0], overlayMap)
			if err != nil {
				return err
			}

			env := make([]string, 0, len(overlayMap))
			for k, v := range overlayMap {
				env = append(env, k+"="+v)
			}

			child := exec.CommandContext(cmd.Context(), target, args[1:]...)
			child.Env = env
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			if err := child.Run(); err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					os.Exit(exitErr.ExitCode())
				}
				return fmt.Errorf("exec: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "named environment override")
	return cmd
}
