package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/cuenv/cuenv/internal/model"
)

// cueBridge is this binary's concrete implementation of discovery.Evaluator:
// it shells out to the `cue` CLI to export a project directory's package as
// JSON, then decodes it directly into model.Project. The exact CUE schema
// that produces this JSON shape is the evaluator's responsibility, not
// this toolchain's (spec.md §1 names the CUE evaluator an external FFI
// collaborator) — this bridge only assumes the exported JSON's keys match
// model.Project's Go field names.
type cueBridge struct {
	binary string
}

func newCueBridge() *cueBridge {
	return &cueBridge{binary: "cue"}
}

// EvaluateProject implements discovery.Evaluator.
func (b *cueBridge) EvaluateProject(projectPath string) (*model.Project, error) {
	cmd := exec.Command(b.binary, "export", "--out", "json", ".")
	cmd.Dir = projectPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cli: cue export in %s: %w: %s", projectPath, err, stderr.String())
	}

	var project model.Project
	if err := json.Unmarshal(stdout.Bytes(), &project); err != nil {
		return nil, fmt.Errorf("cli: decode cue export for %s: %w", projectPath, err)
	}
	if project.Root == "" {
		project.Root = projectPath
	}
	log.Printf("evaluated project %s (name=%q, tasks=%d)", projectPath, project.Name, len(project.Tasks))
	return &project, nil
}
