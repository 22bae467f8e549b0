package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuenv/cuenv/pkg/console"
	"github.com/cuenv/cuenv/pkg/stringutil"
	"github.com/spf13/cobra"
)

// configHashFor hashes directory's manifest file, the same content the
// hook supervisor keys its instance hash on (spec.md §4.8 step 1).
// Whitespace is normalized first so a trailing-newline-only edit doesn't
// force re-approval.
func configHashFor(directory string) (string, error) {
	data, err := os.ReadFile(filepath.Join(directory, "env.cue"))
	if err != nil {
		return "", fmt.Errorf("cli: read manifest for approval: %w", err)
	}
	sum := sha256.Sum256([]byte(stringutil.NormalizeWhitespace(string(data))))
	return hex.EncodeToString(sum[:]), nil
}

// NewAllowCommand builds the `allow` command (spec.md §6). Approving hook
// execution grants a directory's env.cue the right to run arbitrary
// commands on every future load, so by default it prompts for interactive
// confirmation; --yes skips the prompt for scripted/CI use.
func NewAllowCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "allow [DIR]",
		Short: "Approve hook execution for a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed, err := console.ConfirmAction(
					"Approve hook execution for this directory?",
					"Approve", "Cancel",
				)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "approval cancelled")
					return nil
				}
			}
			return setApproval(cmd, args, true)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the interactive confirmation prompt")
	return cmd
}

// NewDenyCommand builds the `deny` command (spec.md §6).
func NewDenyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deny [DIR]",
		Short: "Revoke hook execution approval for a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setApproval(cmd, args, false)
		},
	}
}

func setApproval(cmd *cobra.Command, args []string, approved bool) error {
	directory := "."
	if len(args) == 1 {
		directory = args[0]
	}
	abs, err := filepath.Abs(directory)
	if err != nil {
		return err
	}
	hash, err := configHashFor(abs)
	if err != nil {
		return err
	}
	if err := writeApproval(abs, hash, approved); err != nil {
		return err
	}
	verb := "approved"
	if !approved {
		verb = "denied"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s hook execution for %s\n", verb, abs)
	return nil
}
