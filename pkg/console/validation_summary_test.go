package console

import (
	"strings"
	"testing"
)

func TestFormatValidationSummary_NoErrors(t *testing.T) {
	results := &ValidationResults{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	output := FormatValidationSummary(results, false)
	if output != "" {
		t.Errorf("Expected empty output for no errors, got: %s", output)
	}
}

func TestFormatValidationSummary_SingleError(t *testing.T) {
	results := &ValidationResults{
		Errors: []ValidationError{
			{
				Category: "pipeline",
				Severity: "high",
				Message:  `duplicate task id "build"`,
				File:     "ci.cue",
				Line:     5,
			},
		},
	}

	output := FormatValidationSummary(results, false)

	if !strings.Contains(output, "IR validation failed with 1 problem(s)") {
		t.Errorf("Expected problem count in output, got: %s", output)
	}

	if !strings.Contains(output, "Error Summary:") {
		t.Errorf("Expected error summary section, got: %s", output)
	}

	if !strings.Contains(output, "High: 1 error(s)") {
		t.Errorf("Expected severity count, got: %s", output)
	}

	if !strings.Contains(output, "By Category:") {
		t.Errorf("Expected category section, got: %s", output)
	}

	if !strings.Contains(output, "Pipeline: 1 error(s)") {
		t.Errorf("Expected pipeline category, got: %s", output)
	}

	if !strings.Contains(output, "Recommended Fix Order:") {
		t.Errorf("Expected recommended fix order, got: %s", output)
	}

	if !strings.Contains(output, "Use --verbose") {
		t.Errorf("Expected verbose flag hint, got: %s", output)
	}
}

func TestFormatValidationSummary_MultipleErrors(t *testing.T) {
	results := &ValidationResults{
		Errors: []ValidationError{
			{
				Category: "pipeline",
				Severity: "high",
				Message:  `duplicate task id "build"`,
				File:     "ci.cue",
				Line:     5,
			},
			{
				Category: "dependency",
				Severity: "critical",
				Message:  `task "deploy" depends on unknown id "test"`,
				File:     "ci.cue",
				Line:     8,
			},
			{
				Category: "pipeline",
				Severity: "medium",
				Message:  `duplicate task id "lint"`,
				File:     "ci.cue",
				Line:     12,
			},
		},
	}

	output := FormatValidationSummary(results, false)

	if !strings.Contains(output, "IR validation failed with 3 problem(s)") {
		t.Errorf("Expected 3 problems in output, got: %s", output)
	}

	if !strings.Contains(output, "Critical: 1 error(s)") {
		t.Errorf("Expected critical severity count, got: %s", output)
	}
	if !strings.Contains(output, "High: 1 error(s)") {
		t.Errorf("Expected high severity count, got: %s", output)
	}
	if !strings.Contains(output, "Medium: 1 error(s)") {
		t.Errorf("Expected medium severity count, got: %s", output)
	}

	if !strings.Contains(output, "Pipeline: 2 error(s)") {
		t.Errorf("Expected 2 pipeline errors grouped, got: %s", output)
	}
	if !strings.Contains(output, "Dependency: 1 error(s)") {
		t.Errorf("Expected 1 dependency error grouped, got: %s", output)
	}
}

func TestFormatValidationSummary_VerboseMode(t *testing.T) {
	results := &ValidationResults{
		Errors: []ValidationError{
			{
				Category: "pipeline",
				Severity: "high",
				Message:  `duplicate task id "build"`,
				File:     "ci.cue",
				Line:     5,
				Hint:     "rename one of the conflicting tasks",
			},
			{
				Category: "dependency",
				Severity: "critical",
				Message:  `task "deploy" depends on unknown id "test"`,
				File:     "ci.cue",
				Line:     8,
			},
		},
	}

	output := FormatValidationSummary(results, true)

	if !strings.Contains(output, "Detailed Errors:") {
		t.Errorf("Expected detailed errors section in verbose mode, got: %s", output)
	}

	if !strings.Contains(output, `duplicate task id "build"`) {
		t.Errorf("Expected detailed error message in verbose mode, got: %s", output)
	}

	if !strings.Contains(output, "Location: ci.cue:5") {
		t.Errorf("Expected file location in verbose mode, got: %s", output)
	}

	if !strings.Contains(output, "Hint: rename one of the conflicting tasks") {
		t.Errorf("Expected hint in verbose mode, got: %s", output)
	}

	if strings.Contains(output, "Use --verbose") {
		t.Errorf("Should not show verbose hint when already in verbose mode, got: %s", output)
	}

	if strings.Contains(output, "Recommended Fix Order:") {
		t.Errorf("Should not show fix order in verbose mode, got: %s", output)
	}
}

func TestGroupErrorsByCategory(t *testing.T) {
	errors := []ValidationError{
		{Category: "pipeline", Message: "Error 1"},
		{Category: "dependency", Message: "Error 2"},
		{Category: "pipeline", Message: "Error 3"},
		{Category: "", Message: "Error 4"}, // Empty category
	}

	groups := groupErrorsByCategory(errors)

	if len(groups["pipeline"]) != 2 {
		t.Errorf("Expected 2 pipeline errors, got %d", len(groups["pipeline"]))
	}

	if len(groups["dependency"]) != 1 {
		t.Errorf("Expected 1 dependency error, got %d", len(groups["dependency"]))
	}

	if len(groups["validation"]) != 1 {
		t.Errorf("Expected 1 validation error (empty category), got %d", len(groups["validation"]))
	}
}

func TestFormatValidationSummary_AllSeverityLevels(t *testing.T) {
	results := &ValidationResults{
		Errors: []ValidationError{
			{Category: "deployment", Severity: "critical", Message: "Critical deployment cache-policy issue"},
			{Category: "pipeline", Severity: "high", Message: "High priority pipeline error"},
			{Category: "trigger", Severity: "medium", Message: "Medium trigger config issue"},
			{Category: "command", Severity: "low", Message: "Low priority command warning"},
		},
	}

	output := FormatValidationSummary(results, false)

	if !strings.Contains(output, "Critical: 1 error(s)") {
		t.Errorf("Expected critical severity in output")
	}
	if !strings.Contains(output, "High: 1 error(s)") {
		t.Errorf("Expected high severity in output")
	}
	if !strings.Contains(output, "Medium: 1 error(s)") {
		t.Errorf("Expected medium severity in output")
	}
	if !strings.Contains(output, "Low: 1 error(s)") {
		t.Errorf("Expected low severity in output")
	}
}

func TestFormatValidationSummary_CategoryEmojis(t *testing.T) {
	results := &ValidationResults{
		Errors: []ValidationError{
			{Category: "pipeline", Severity: "high", Message: "Pipeline error"},
			{Category: "dependency", Severity: "high", Message: "Dependency error"},
			{Category: "trigger", Severity: "high", Message: "Trigger error"},
			{Category: "deployment", Severity: "high", Message: "Deployment error"},
			{Category: "command", Severity: "high", Message: "Command error"},
			{Category: "validation", Severity: "high", Message: "Generic validation error"},
		},
	}

	output := FormatValidationSummary(results, true)

	// In verbose mode, emojis should appear in detailed errors.
	// Just verify the output is generated without error.
	if output == "" {
		t.Errorf("Expected non-empty output with emojis")
	}
}
