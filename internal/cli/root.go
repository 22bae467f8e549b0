package cli

import (
	"fmt"
	"os"

	"github.com/cuenv/cuenv/pkg/console"
	"github.com/cuenv/cuenv/pkg/constants"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the cuenv root command: command groups mirroring
// the teacher's rootCmd.AddGroup pattern, a persistent --verbose flag, a
// custom version template, and the reserved hidden __hook-supervisor/
// __coordinator subcommands (spec.md §6, SPEC_FULL.md §7).
func NewRootCommand(version string) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     constants.CLIExtensionPrefix,
		Short:   "cuenv build toolchain",
		Version: version,
		Long: `cuenv discovers, indexes, and runs tasks declared in CUE modules.

Common Tasks:
  cuenv task build          # Run a task
  cuenv env print           # Print the resolved environment
  cuenv exec -- go test ./...   # Run a command with the composed environment
  cuenv ci --pipeline ci    # Compile a CI pipeline to the generic IR

For detailed help on any command, use:
  cuenv [command] --help`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "environment", Title: "Environment Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "ci", Title: "CI Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "release", Title: "Release Commands:"})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.SetOut(os.Stderr)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n%s\n",
		console.FormatInfoMessage(fmt.Sprintf("%s version {{.Version}}", constants.CLIExtensionPrefix)),
		console.FormatInfoMessage("cuenv build toolchain")))

	originalHelpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		for _, subCmd := range cmd.Commands() {
			if subCmd.Name() == "completion" {
				subCmd.Hidden = true
			}
		}
		originalHelpFunc(cmd, args)
	})

	customHelpCmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides help for any command in the application.
Simply type cuenv help [path to command] for full details.

Use "cuenv help all" to show help for every command.`,
		Run: func(c *cobra.Command, args []string) {
			if len(args) == 1 && args[0] == "all" {
				fmt.Fprintln(os.Stderr, console.FormatInfoMessage("cuenv - Complete Command Reference"))
				fmt.Fprintln(os.Stderr, "")
				for _, subCmd := range rootCmd.Commands() {
					if subCmd.Hidden || subCmd.Name() == "help" {
						continue
					}
					fmt.Fprintln(os.Stderr, console.FormatInfoMessage("==================================================================="))
					fmt.Fprintf(os.Stderr, "\n%s\n\n", console.FormatInfoMessage(fmt.Sprintf("Command: cuenv %s", subCmd.Name())))
					_ = subCmd.Help()
					fmt.Fprintln(os.Stderr, "")
				}
				fmt.Fprintln(os.Stderr, console.FormatInfoMessage("==================================================================="))
				return
			}

			cmd, _, e := rootCmd.Find(args)
			if cmd == nil || e != nil {
				fmt.Fprintf(os.Stderr, "Unknown help topic [%#q]\n", args)
				_ = rootCmd.Usage()
			} else {
				cmd.InitDefaultHelpFlag()
				_ = cmd.Help()
			}
		},
	}
	rootCmd.SetHelpCommand(customHelpCmd)
	rootCmd.AddCommand(customHelpCmd)

	taskCmd := NewTaskCommand()
	envCmd := NewEnvCommand()
	execCmd := NewExecCommand()
	allowCmd := NewAllowCommand()
	denyCmd := NewDenyCommand()
	ciCmd := NewCICommand()
	runtimeCmd := NewRuntimeCommand()
	releaseCmd := NewReleaseCommand()

	taskCmd.GroupID = "core"
	execCmd.GroupID = "core"
	allowCmd.GroupID = "core"
	denyCmd.GroupID = "core"
	envCmd.GroupID = "environment"
	ciCmd.GroupID = "ci"
	releaseCmd.GroupID = "release"

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(allowCmd)
	rootCmd.AddCommand(denyCmd)
	rootCmd.AddCommand(ciCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(runtimeCmd)
	rootCmd.AddCommand(NewHookSupervisorCommand())
	rootCmd.AddCommand(NewCoordinatorCommand())

	return rootCmd
}
