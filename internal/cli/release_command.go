package cli

import (
	"fmt"

	"github.com/cuenv/cuenv/internal/release"
	"github.com/spf13/cobra"
)

// NewReleaseCommand builds the supplemental `release` command group: the
// version-arithmetic subset of release tooling (spec.md §1 Non-goals
// excludes changeset generation and publishing).
func NewReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Version-arithmetic release helpers",
	}
	cmd.AddCommand(newReleaseBumpCommand())
	return cmd
}

func newReleaseBumpCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "bump CURRENT_VERSION",
		Short: "Compute the next semantic version for a bump kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := release.Bump(args[0], release.Kind(kind))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "patch", "major|minor|patch|prerelease")
	return cmd
}
