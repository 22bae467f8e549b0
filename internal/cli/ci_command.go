package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cuenv/cuenv/internal/ci"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/console"
	"github.com/spf13/cobra"
)

// NewCICommand builds the `ci` command (spec.md §6): compiles a project's
// named pipeline into IR v1.5. Emitting a concrete provider's workflow
// file from that IR is outside this toolchain's scope (internal/ci's
// package doc, spec.md §1) — --generate only logs the requested provider
// name; the output is the same IR with or without it.
func NewCICommand() *cobra.Command {
	var pipeline, generate, since string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Compile a project's CI pipeline into the generic intermediate representation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pipeline == "" {
				return fmt.Errorf("ci: --pipeline is required")
			}
			if since != "" {
				paths, err := ci.ChangedPathsSince(since)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintf(cmd.ErrOrStderr(), "changed: %s\n", p)
				}
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			mc, err := loadModule(cwd)
			if err != nil {
				return err
			}
			project, _, err := mc.resolveProject("", "")
			if err != nil {
				return err
			}
			idx, err := buildIndex(project)
			if err != nil {
				return err
			}

			ir, err := ci.Compile(project, idx, pipeline, ci.Options{
				DefaultCachePolicy: model.CacheDefault,
				ModuleRoot:         mc.root,
				ProjectPath:        ".",
				CIMode:             true,
			})
			if err != nil {
				return err
			}

			if problems := ci.Validate(ir); len(problems) > 0 {
				results := &console.ValidationResults{}
				for _, p := range problems {
					results.Errors = append(results.Errors, console.ValidationError{
						Category: categorizeValidationProblem(p),
						Severity: "high",
						Message:  p,
					})
				}
				fmt.Fprint(cmd.ErrOrStderr(), console.FormatValidationSummary(results, false))
				return fmt.Errorf("ci: %d validation problems", len(problems))
			}

			if generate != "" {
				log.Printf("--generate %s requested; this binary only emits the generic IR, not a %s workflow file", generate, generate)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would compile pipeline %q with %d tasks\n", pipeline, len(ir.Tasks))
				return nil
			}
			return enc.Encode(ir)
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "pipeline name to compile")
	cmd.Flags().StringVar(&generate, "generate", "", "target provider name (informational; see package docs)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be compiled without emitting the IR")
	cmd.Flags().StringVar(&since, "since", "", "print paths changed since this git ref before compiling")
	return cmd
}

// categorizeValidationProblem classifies one of ci.Validate's flat problem
// strings into a console.ValidationError category, matching the wording
// Validate itself uses (internal/ci/validate.go).
func categorizeValidationProblem(problem string) string {
	switch {
	case strings.Contains(problem, "duplicate task id"):
		return "pipeline"
	case strings.Contains(problem, "scheduled trigger"):
		return "trigger"
	case strings.Contains(problem, "depends on unknown id"):
		return "dependency"
	case strings.Contains(problem, "deployment task"):
		return "deployment"
	case strings.Contains(problem, "empty command"):
		return "command"
	default:
		return "validation"
	}
}
