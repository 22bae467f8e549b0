package hooksup

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// envDeltaDelimiter separates the hook script's own output from the
// NUL-delimited post-script environment dump (spec.md §4.8).
const envDeltaDelimiter = "__CUENV_ENV_START__"

// isEphemeralKey reports whether key is dropped from any captured environment
// delta: shell bookkeeping that differs between every invocation and carries
// no signal.
func isEphemeralKey(key string) bool {
	switch key {
	case "_", "PWD", "OLDPWD", "SHLVL", "PS1", "PS2":
		return true
	}
	return strings.HasPrefix(key, "BASH") || strings.HasPrefix(key, "BASH_FUNC_")
}

// detectShell probes for a shell capable of case-fallthrough (;&),
// preferring bash, then zsh, then sh as a last resort.
func detectShell(ctx context.Context) string {
	for _, shell := range []string{"bash", "zsh"} {
		if shellCapable(ctx, shell) {
			return shell
		}
	}
	return "sh"
}

func shellCapable(ctx context.Context, shell string) bool {
	cmd := exec.CommandContext(ctx, shell, "-c", "case x in x) true ;& y) true ;; esac")
	return cmd.Run() == nil
}

// shellFromScript looks for a `BASH='...'` path mentioned in the hook
// output (common with Nix-provided bash) and prefers it over the probed
// shell, to avoid system/Nix bash incompatibilities.
func shellFromScript(script string, fileExists func(string) bool) (string, bool) {
	for _, line := range strings.Split(script, "\n") {
		rest, ok := strings.CutPrefix(line, "BASH='")
		if !ok {
			continue
		}
		end := strings.IndexByte(rest, '\'')
		if end < 0 {
			continue
		}
		path := rest[:end]
		if fileExists(path) {
			return path, true
		}
	}
	return "", false
}

// captureEnv runs `shell -c "env -0"` and parses the NUL-delimited output
// into a map.
func captureEnv(ctx context.Context, shell string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", "env -0")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parseEnvZero(out), nil
}

func parseEnvZero(data []byte) map[string]string {
	env := map[string]string{}
	for _, rec := range bytes.Split(data, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		if i := bytes.IndexByte(rec, '='); i >= 0 {
			env[string(rec[:i])] = string(rec[i+1:])
		}
	}
	return env
}

// EvaluateShellEnvironment runs a source hook's script, appends the
// delimiter + `env -0` sentinel, and returns the delta of new/changed
// non-ephemeral environment variables the script produced. This is the
// authoritative protocol for source hooks (spec.md §4.8): capture
// env_before, run `script; echo -ne '\0__CUENV_ENV_START__\0'; env -0`,
// split on the delimiter, diff against env_before, and drop ephemeral keys.
func EvaluateShellEnvironment(ctx context.Context, script string, fileExists func(string) bool) (map[string]string, error) {
	shell := detectShell(ctx)
	if bashPath, ok := shellFromScript(script, fileExists); ok {
		shell = bashPath
	}

	envBefore, err := captureEnv(ctx, shell)
	if err != nil {
		return nil, err
	}

	full := script + "\necho -ne '\\0" + envDeltaDelimiter + "\\0'; env -0"
	cmd := exec.CommandContext(ctx, shell, "-c", full)
	out, runErr := cmd.Output()

	delimiterBytes := []byte("\x00" + envDeltaDelimiter + "\x00")
	idx := bytes.Index(out, delimiterBytes)

	var envAfter []byte
	if idx >= 0 {
		envAfter = out[idx+len(delimiterBytes):]
	}

	delta := map[string]string{}
	for key, value := range parseEnvZero(envAfter) {
		if isEphemeralKey(key) {
			continue
		}
		if before, ok := envBefore[key]; ok && before == value {
			continue
		}
		delta[key] = value
	}

	if len(delta) == 0 && runErr != nil {
		return nil, runErr
	}
	// A non-zero exit with a captured delta is tolerated: many tools emit
	// valid exports before failing (spec.md §4.8).
	return delta, nil
}
