package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, projects ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ModuleMarkerDir), 0o755))
	for _, rel := range projects {
		dir := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectMarkerFile), []byte("env: {}\n"), 0o644))
	}
	return root
}

func TestFindModuleRoot(t *testing.T) {
	root := writeModule(t, "projects/api")
	nested := filepath.Join(root, "projects", "api")

	found, err := FindModuleRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindModuleRootMissing(t *testing.T) {
	_, err := FindModuleRoot(t.TempDir())
	require.Error(t, err)
}

func TestWalkProjectDirs(t *testing.T) {
	root := writeModule(t, ".", "projects/api", "projects/web")

	dirs, err := WalkProjectDirs(root)
	require.NoError(t, err)
	assert.Len(t, dirs, 3)
	assert.Contains(t, dirs, root)
	assert.Contains(t, dirs, filepath.Join(root, "projects", "api"))
}

type stubEvaluator struct{ calls int }

func (s *stubEvaluator) EvaluateProject(path string) (*model.Project, error) {
	s.calls++
	return &model.Project{Name: filepath.Base(path)}, nil
}

func TestDiscoverFallback(t *testing.T) {
	root := writeModule(t, "projects/api", "projects/web")
	eval := &stubEvaluator{}

	projects, err := Discover(root, nil, eval)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Equal(t, 2, eval.calls)
}

func TestDiscoverCached(t *testing.T) {
	cached := &ModuleEvaluation{
		ModuleRoot: "/module",
		Projects: map[string]*model.Project{
			"/module/a": {Name: "a", Root: "/module/a"},
		},
	}
	eval := &stubEvaluator{}

	projects, err := Discover("/module", cached, eval)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, 0, eval.calls)
}

func TestServiceDisambiguatesCollidingNames(t *testing.T) {
	p1 := &model.Project{Name: "api", Root: "/module/a"}
	p2 := &model.Project{Name: "api", Root: "/module/b"}

	svc, err := NewService("/module", []*model.Project{p1, p2})
	require.NoError(t, err)

	assert.Same(t, p1, svc.ByID["api"])
	id2, ok := svc.ProjectIDOf("/module/b")
	require.True(t, ok)
	assert.NotEqual(t, "api", id2)
}

func TestServiceResolveRef(t *testing.T) {
	p := &model.Project{Name: "api", Root: "/module/a"}
	svc, err := NewService("/module", []*model.Project{p})
	require.NoError(t, err)

	resolved, taskName, err := svc.ResolveRef(model.TaskRef{Project: "api", Task: "build"})
	require.NoError(t, err)
	assert.Same(t, p, resolved)
	assert.Equal(t, "build", taskName)

	_, _, err = svc.ResolveRef(model.TaskRef{Project: "missing", Task: "build"})
	require.Error(t, err)
}
