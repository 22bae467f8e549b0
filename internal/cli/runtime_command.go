package cli

import (
	"fmt"
	"os"

	"github.com/cuenv/cuenv/internal/tools"
	"github.com/cuenv/cuenv/pkg/console"
	"github.com/spf13/cobra"
)

// NewRuntimeCommand builds the internal `runtime` command group, whose
// `oci activate` subcommand emits shell PATH/lib-path lines for a locked
// tool set (spec.md §6).
func NewRuntimeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "runtime",
		Short:  "Internal runtime activation helpers",
		Hidden: true,
	}
	cmd.AddCommand(newRuntimeOCICommand())
	return cmd
}

func newRuntimeOCICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oci",
		Short: "OCI-backed runtime activation",
	}
	cmd.AddCommand(newRuntimeOCIActivateCommand())
	return cmd
}

func newRuntimeOCIActivateCommand() *cobra.Command {
	var lockfilePath string
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Fetch and emit shell activation lines for a tool lockfile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lockfilePath == "" {
				lockfilePath = "cuenv.lock.yaml"
			}
			lock, err := tools.LoadLockfile(lockfilePath)
			if err != nil {
				return err
			}

			registry, err := tools.NewRegistry()
			if err != nil {
				return err
			}
			if formulas := lock.Formulas(); len(formulas) > 0 {
				hb := tools.NewHomebrewProvider()
				hb.Dependencies = formulas
				registry.Register(hb)
			}

			platform := tools.HostPlatform()

			spinner := console.NewSpinner(fmt.Sprintf("fetching %d tool artifact(s)...", len(lock.Artifacts)))
			spinner.Start()
			result, err := tools.Activate(lock, registry, platform, tools.Options{
				CacheDir:     cacheDir,
				GitHubToken:  os.Getenv("GITHUB_TOKEN"),
				ForceRefetch: false,
			})
			if err != nil {
				spinner.Stop()
				return err
			}
			spinner.StopWithMessage(console.FormatSuccessMessage(
				fmt.Sprintf("activated %s", console.FormatFileSize(activatedSize(result)))))

			for _, line := range tools.ShellActivationLines(result, platform) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lockfilePath, "lockfile", "", "path to the tool lockfile (default cuenv.lock.yaml)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the tool cache directory")
	return cmd
}

// activatedSize sums the size of every regular file directly inside
// result's bin and lib directories, for the post-activation spinner summary.
func activatedSize(result *tools.ActivationResult) int64 {
	var total int64
	for _, dir := range append(append([]string{}, result.BinDirs...), result.LibDirs...) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			total += info.Size()
		}
	}
	return total
}
