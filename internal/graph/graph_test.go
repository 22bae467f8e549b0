package graph

import (
	"testing"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(name string, deps ...string) *model.Task {
	return &model.Task{Name: name, Command: "true", DependsOn: deps}
}

func TestBuildLevels(t *testing.T) {
	reg := Registry{
		"task:app:prep":    task("prep"),
		"task:app:compile": task("compile", "task:app:prep"),
		"task:app:lint":    task("lint", "task:app:prep"),
		"task:app:bundle":  task("bundle", "task:app:compile", "task:app:lint"),
	}

	g, err := Build(reg)
	require.NoError(t, err)

	levels := g.Levels()
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"task:app:prep"}, levels[0])
	assert.ElementsMatch(t, []string{"task:app:compile", "task:app:lint"}, levels[1])
	assert.Equal(t, []string{"task:app:bundle"}, levels[2])
}

func TestBuildDetectsCycle(t *testing.T) {
	reg := Registry{
		"task:app:a": task("a", "task:app:b"),
		"task:app:b": task("b", "task:app:a"),
	}

	_, err := Build(reg)
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestIsSingleTask(t *testing.T) {
	reg := Registry{"task:app:solo": task("solo")}
	name, ok := IsSingleTask(reg)
	assert.True(t, ok)
	assert.Equal(t, "task:app:solo", name)

	reg["task:app:other"] = task("other")
	_, ok = IsSingleTask(reg)
	assert.False(t, ok)
}

func TestComposeEnvOverlayWins(t *testing.T) {
	t.Setenv("CUENV_TEST_VAR", "from-system")
	env := composeEnv(map[string]string{"CUENV_TEST_VAR": "from-overlay"})

	found := false
	for _, kv := range env {
		if kv == "CUENV_TEST_VAR=from-overlay" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTailBufferKeepsLastN(t *testing.T) {
	b := newTailBuffer(2)
	b.Add("one")
	b.Add("two")
	b.Add("three")
	assert.Equal(t, []string{"two", "three"}, b.Lines())
}
