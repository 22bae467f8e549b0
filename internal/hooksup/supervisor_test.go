package hooksup

import (
	"context"
	"testing"
	"time"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSupervisorExecutesHooksInOrder(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{StateDir: t.TempDir()}

	cfg := Config{
		Directory:      dir,
		ConfigHash:     "hash1",
		DefaultTimeout: 5 * time.Second,
		Hooks: []Hook{
			{Command: "true"},
			{Source: true, Script: "export GREETING=hello"},
		},
	}

	err := RunSupervisor(context.Background(), paths, "inst1", cfg)
	require.NoError(t, err)

	state, err := LoadState(paths, "inst1")
	require.NoError(t, err)
	assert.Equal(t, model.HookCompleted, state.Status)
	assert.Len(t, state.Hooks, 2)
	assert.Equal(t, "hello", state.Environment["GREETING"])
}

func TestRunSupervisorFailFastStopsAfterFirstFailure(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{StateDir: t.TempDir()}

	cfg := Config{
		Directory:      dir,
		ConfigHash:     "hash2",
		FailFast:       true,
		DefaultTimeout: 5 * time.Second,
		Hooks: []Hook{
			{Command: "false"},
			{Command: "true"},
		},
	}

	err := RunSupervisor(context.Background(), paths, "inst2", cfg)
	require.NoError(t, err)

	state, err := LoadState(paths, "inst2")
	require.NoError(t, err)
	assert.Equal(t, model.HookFailed, state.Status)
	assert.Len(t, state.Hooks, 1)
}

func TestRunHookSanitizesOutput(t *testing.T) {
	result := runHook(context.Background(), Hook{
		Command: "sh",
		Args:    []string{"-c", "echo DEPLOY_TOKEN=s3cr3t"},
	}, 5*time.Second)

	assert.Contains(t, result.Output, "[REDACTED]")
	assert.NotContains(t, result.Output, "DEPLOY_TOKEN")
}

func TestRunHookTruncatesLongOutput(t *testing.T) {
	result := runHook(context.Background(), Hook{
		Command: "sh",
		Args:    []string{"-c", "head -c 20000 /dev/zero | tr '\\0' 'x'"},
	}, 5*time.Second)

	assert.LessOrEqual(t, len(result.Output), maxPersistedHookOutput)
}
