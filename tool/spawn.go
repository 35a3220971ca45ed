package tool

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/zhangyunhao116/appcage/allowlist"
)

// maxCapturedOutput bounds the stdout captured by SpawnRead (1 MiB).
const maxCapturedOutput = 1 << 20

// Spawn executes argv synchronously, inheriting stdout and stderr, and
// blocks until the child exits. The command is rejected before any fork if
// argv is empty or argv[0] fails the command allow-list. A non-zero exit
// status is reported as an error.
func Spawn(argv []string, logger *slog.Logger) error {
	log := nopLogger(logger)
	if len(argv) == 0 || !CheckAllowlist(argv[0]) {
		log.Warn("spawn denied", "argv", argv)
		return ErrDenied
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tool: spawn %q: %w", argv[0], err)
	}
	return nil
}

// SpawnRead executes argv synchronously and returns its captured standard
// output. The same allow-list gate as Spawn applies; additionally, when ctx
// is non-nil the executable path must pass a read check. Captured output is
// capped; exceeding the cap truncates the capture but the child still runs
// to completion.
func SpawnRead(argv []string, ctx *allowlist.Context, logger *slog.Logger) ([]byte, error) {
	log := nopLogger(logger)
	if len(argv) == 0 || !CheckAllowlist(argv[0]) {
		log.Warn("spawn denied", "argv", argv)
		return nil, ErrDenied
	}
	// A bare basename ("cc") resolves through PATH; only explicit paths are
	// subject to the path allow-list.
	if ctx != nil && strings.HasPrefix(argv[0], "/") {
		if err := ctx.Check(argv[0], allowlist.Read); err != nil {
			log.Warn("spawn denied by allow-list", "command", argv[0])
			return nil, ErrDenied
		}
	}

	var stdout bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: maxCapturedOutput}
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tool: spawn %q: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}

// limitedWriter caps the bytes accumulated in buf while reporting full
// writes, so the child never sees a short-write error.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard but report success
	}
	if len(p) <= remaining {
		return w.buf.Write(p)
	}
	if _, err := w.buf.Write(p[:remaining]); err != nil {
		return 0, err
	}
	return len(p), nil
}
