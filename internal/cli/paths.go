package cli

import (
	"os"
	"path/filepath"

	"github.com/cuenv/cuenv/internal/hooksup"
	"github.com/cuenv/cuenv/pkg/constants"
)

// defaultStateDir resolves the hook-supervisor state directory: the
// CUENV_STATE_DIR override, or a platform-specific location under the
// user's data directory (spec.md §6).
func defaultStateDir() string {
	if v := os.Getenv(constants.StateDirEnvVar); v != "" {
		return v
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(os.TempDir(), "cuenv")
	}
	return filepath.Join(base, "cuenv", "hooks")
}

func hookPaths() hooksup.Paths {
	return hooksup.Paths{StateDir: defaultStateDir()}
}

// approvalFilePath resolves the allow/deny approval file for directory.
func approvalFilePath(directory string) string {
	if v := os.Getenv(constants.ApprovalFileEnvVar); v != "" {
		return v
	}
	return filepath.Join(defaultStateDir(), "approvals", hooksup.DirectoryHash(directory)+".json")
}

// executablePath resolves the binary used to re-exec the supervisor,
// honoring the CUENV_EXECUTABLE test override.
func executablePath() (string, error) {
	if v := os.Getenv(constants.ExecutableEnvVar); v != "" {
		return v, nil
	}
	return os.Executable()
}
