package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowThenDenyCommand(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(constants.ApprovalFileEnvVar, filepath.Join(stateDir, "approval.json"))

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "env.cue"), []byte("env: {}\n"), 0o644))

	allow := NewAllowCommand()
	var out bytes.Buffer
	allow.SetOut(&out)
	allow.SetArgs([]string{projectDir})
	require.NoError(t, allow.Execute())
	assert.Contains(t, out.String(), "approved")

	hash, err := configHashFor(projectDir)
	require.NoError(t, err)
	abs, err := filepath.Abs(projectDir)
	require.NoError(t, err)
	assert.True(t, IsApproved(abs, hash))

	deny := NewDenyCommand()
	out.Reset()
	deny.SetOut(&out)
	deny.SetArgs([]string{projectDir})
	require.NoError(t, deny.Execute())
	assert.Contains(t, out.String(), "denied")
	assert.False(t, IsApproved(abs, hash))
}

func TestReleaseBumpCommand(t *testing.T) {
	cmd := NewReleaseCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"bump", "1.2.3", "--kind", "minor"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "1.3.0\n", out.String())
}

func TestRenderEnvStatusFormats(t *testing.T) {
	cmd := NewEnvCommand()
	state := &model.ExecutionState{Status: model.HookCompleted}

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, renderEnvStatus(cmd, state, true, "short"))
	assert.Equal(t, "completed\n", out.String())

	out.Reset()
	require.NoError(t, renderEnvStatus(cmd, nil, false, "text"))
	assert.Equal(t, "no active hook supervisor\n", out.String())
}

func TestExecCommandDisablesFlagParsing(t *testing.T) {
	cmd := NewExecCommand()
	assert.True(t, cmd.DisableFlagParsing, "exec must pass unrecognized flags through to the child process")
}

func TestEnvStatusRejectsUnknownOutputFormat(t *testing.T) {
	cmd := NewEnvCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"status", "--output-format", "xml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-format must be one of")
}
