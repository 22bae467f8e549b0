package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/cuenv/cuenv/internal/envmodel"
	"github.com/cuenv/cuenv/internal/hooksup"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/console"
	"github.com/cuenv/cuenv/pkg/sliceutil"
	"github.com/spf13/cobra"
)

// envStatusFormats lists the accepted `--output-format` values for
// `env status`, validated up front so a typo surfaces before any work
// starts rather than silently falling through to the default renderer.
var envStatusFormats = []string{"text", "short", "starship"}

// NewEnvCommand builds the `env` command group (spec.md §6).
func NewEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and load the composed environment",
	}
	cmd.AddCommand(newEnvPrintCommand())
	cmd.AddCommand(newEnvLoadCommand())
	cmd.AddCommand(newEnvStatusCommand())
	cmd.AddCommand(newEnvCheckCommand())
	cmd.AddCommand(newEnvListCommand())
	cmd.AddCommand(newEnvInspectCommand())
	return cmd
}

func loadProjectEnv(envName string) (map[string]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	mc, err := loadModule(cwd)
	if err != nil {
		return nil, err
	}
	project, _, err := mc.resolveProject("", "")
	if err != nil {
		return nil, err
	}
	values := envmodel.ForEnvironment(project.Env, envName)
	resolved, secrets, err := envmodel.ResolveForTask(values, "", &externalSecretResolver{})
	if err != nil {
		return nil, err
	}
	for _, s := range secrets {
		redactionTable.Register(s)
	}
	return resolved, nil
}

func newEnvPrintCommand() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the resolved environment as KEY=VALUE lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadProjectEnv(envName)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(resolved))
			for k := range resolved {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, redactionTable.Redact(resolved[k]))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "named environment override")
	return cmd
}

func newEnvLoadCommand() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Emit shell-sourceable export statements for the resolved environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := loadProjectEnv(envName)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(resolved))
			for k := range resolved {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "export %s=%q\n", k, resolved[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "named environment override")
	return cmd
}

func newEnvStatusCommand() *cobra.Command {
	var wait bool
	var timeoutSec int
	var outputFormat string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the background hook supervisor's status for this directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !sliceutil.Contains(envStatusFormats, outputFormat) {
				return fmt.Errorf("cli: --output-format must be one of %v, got %q", envStatusFormats, outputFormat)
			}

			directory, err := os.Getwd()
			if err != nil {
				return err
			}
			paths := hookPaths()

			if !wait {
				state, ok := hooksup.QueryAsync(paths, directory, 10*time.Second, time.Hour)
				return renderEnvStatus(cmd, state, ok, outputFormat)
			}

			instanceHash, err := hooksup.ReadDirMarker(paths, directory)
			if err != nil {
				return renderEnvStatus(cmd, nil, false, outputFormat)
			}
			ctx, cancel := withTimeout(cmd, timeoutSec)
			defer cancel()
			state, err := hooksup.Wait(ctx, paths, instanceHash, 200*time.Millisecond)
			if err != nil {
				return err
			}
			return renderEnvStatus(cmd, state, true, outputFormat)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the supervisor reaches a terminal state")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 30, "seconds to wait when --wait is set")
	cmd.Flags().StringVar(&outputFormat, "output-format", "text", "text|short|starship")
	return cmd
}

func renderEnvStatus(cmd *cobra.Command, state *model.ExecutionState, ok bool, format string) error {
	if !ok || state == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no active hook supervisor")
		return nil
	}
	switch format {
	case "short":
		fmt.Fprintln(cmd.OutOrStdout(), string(state.Status))
	case "starship":
		if state.Status == model.HookRunning {
			fmt.Fprintln(cmd.OutOrStdout(), "⏳")
		}
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "status=%s hooks=%d\n", state.Status, len(state.Hooks))
	}
	return nil
}

// withTimeout builds a context bounded by timeoutSec, cancelled early if
// the command's own context is cancelled (e.g. SIGINT).
func withTimeout(cmd *cobra.Command, timeoutSec int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
}

func newEnvCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the current project's environment table without printing values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadProjectEnv(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newEnvListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every declared environment variable key (redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			mc, err := loadModule(cwd)
			if err != nil {
				return err
			}
			project, _, err := mc.resolveProject("", "")
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(project.Env.Base))
			for k := range project.Env.Base {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, envmodel.ToStringRedacted(project.Env.Base[k])})
			}
			fmt.Fprint(cmd.OutOrStdout(), console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("%s environment", project.Name),
				Headers: []string{"KEY", "VALUE"},
				Rows:    rows,
			}))
			return nil
		},
	}
}

func newEnvInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect KEY",
		Short: "Show one environment variable's kind and redacted value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			mc, err := loadModule(cwd)
			if err != nil {
				return err
			}
			project, _, err := mc.resolveProject("", "")
			if err != nil {
				return err
			}
			v, ok := project.Env.Base[args[0]]
			if !ok {
				return fmt.Errorf("env: no such key %q", args[0])
			}
			out := map[string]string{"key": args[0], "kind": string(v.Kind), "value": envmodel.ToStringRedacted(v)}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
