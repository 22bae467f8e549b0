package hooksup

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/creack/pty"
)

// runInteractive runs a hook command under a pseudo-terminal instead of
// plain pipes, for hooks (nix develop, devenv shell) that detect an
// interactive TTY and change their output framing accordingly. Buffers the
// full transcript rather than streaming, mirroring the non-interactive
// hook path's Output field.
func runInteractive(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, f)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return buf.String(), waitErr
	}
	if copyErr != nil && copyErr != io.EOF {
		return buf.String(), copyErr
	}
	return buf.String(), nil
}
