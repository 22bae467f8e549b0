package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectCommands walks root's visible subcommand tree, mirroring the
// teacher's flat allCommands slices built by hand per command group.
func collectCommands(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		out = append(out, c)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	for _, sub := range root.Commands() {
		walk(sub)
	}
	return out
}

func TestRootCommandBuilds(t *testing.T) {
	root := NewRootCommand("test")
	require.NotNil(t, root)
	assert.Equal(t, "cuenv", root.Use)
}

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root := NewRootCommand("test")
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"task", "env", "exec", "allow", "deny", "ci", "release", "help"} {
		assert.True(t, names[want], "expected root command %q", want)
	}
}

func TestHiddenCommandsAreHidden(t *testing.T) {
	root := NewRootCommand("test")
	for _, c := range root.Commands() {
		switch c.Name() {
		case hooksupCommandName(), "runtime":
			assert.True(t, c.Hidden, "command %q should be hidden", c.Name())
		}
	}
}

// hooksupCommandName avoids hard-coding the reserved supervisor argument
// string twice in this file.
func hooksupCommandName() string {
	return strings.Fields(NewHookSupervisorCommand().Use)[0]
}

func TestShortDescriptionsHaveNoTrailingPunctuation(t *testing.T) {
	root := NewRootCommand("test")
	for _, cmd := range collectCommands(root) {
		if cmd.Short == "" {
			continue
		}
		last := cmd.Short[len(cmd.Short)-1:]
		assert.NotContains(t, []string{".", "!", "?"}, last,
			"command %q Short should not end with punctuation: %q", cmd.Name(), cmd.Short)
	}
}

func TestEveryGroupedCommandHasAValidGroupID(t *testing.T) {
	root := NewRootCommand("test")
	groupIDs := map[string]bool{}
	for _, g := range root.Groups() {
		groupIDs[g.ID] = true
	}
	for _, c := range root.Commands() {
		if c.GroupID == "" {
			continue
		}
		assert.True(t, groupIDs[c.GroupID], "command %q references unknown group %q", c.Name(), c.GroupID)
	}
}

func TestHelpAllDoesNotPanic(t *testing.T) {
	root := NewRootCommand("test")
	root.SetArgs([]string{"help", "all"})
	assert.NotPanics(t, func() { _ = root.Execute() })
}

func TestVersionTemplateMentionsCuenv(t *testing.T) {
	root := NewRootCommand("1.2.3")
	assert.Contains(t, root.VersionTemplate(), "cuenv")
}
