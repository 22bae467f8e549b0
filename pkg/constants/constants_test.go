package constants

import "testing"

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"CLIExtensionPrefix", CLIExtensionPrefix, "cuenv"},
		{"StateDirEnvVar", StateDirEnvVar, "CUENV_STATE_DIR"},
		{"ApprovalFileEnvVar", ApprovalFileEnvVar, "CUENV_APPROVAL_FILE"},
		{"ExecutableEnvVar", ExecutableEnvVar, "CUENV_EXECUTABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.value, tt.expected)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		expected int
	}{
		{"ExitOK", ExitOK, 0},
		{"ExitCLIError", ExitCLIError, 2},
		{"ExitEvalOrOther", ExitEvalOrOther, 3},
		{"ExitSIGINT", ExitSIGINT, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %d, want %d", tt.name, tt.value, tt.expected)
			}
		})
	}
}
