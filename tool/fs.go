package tool

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhangyunhao116/appcage/allowlist"
	"github.com/zhangyunhao116/appcage/internal/pathutil"
)

// skippedDirs are dependency directories excluded from traversal by policy,
// in addition to every directory whose name starts with a dot.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// FindFiles recursively walks root and returns the paths of files whose
// basename matches pattern. Dotfile-prefixed directories and known
// dependency directories are skipped. When ctx is non-nil the walk requires
// a read grant on root and fails without touching the filesystem otherwise.
// The order of results is the walk order: stable for a given directory
// snapshot, unspecified beyond that.
func FindFiles(root, pattern string, ctx *allowlist.Context) ([]string, error) {
	if root == "" || pattern == "" {
		return nil, ErrDenied
	}
	if ctx != nil {
		if err := ctx.Check(root, allowlist.Read); err != nil {
			return nil, ErrDenied
		}
	}
	re, err := pathutil.CompileGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("tool: bad glob %q: %w", pattern, err)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if re.MatchString(name) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tool: walk %q: %w", root, err)
	}
	return matches, nil
}

// Copy performs a byte-for-byte copy of src to dst. When ctx is non-nil the
// source needs a read grant and the destination a write and create grant;
// any denial happens before the source is opened. Empty paths fail
// immediately.
func Copy(src, dst string, ctx *allowlist.Context) error {
	if src == "" || dst == "" {
		return ErrDenied
	}
	if ctx != nil {
		if err := ctx.Check(src, allowlist.Read); err != nil {
			return ErrDenied
		}
		if err := ctx.Check(dst, allowlist.Write|allowlist.Create); err != nil {
			return ErrDenied
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("tool: copy open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("tool: copy create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("tool: copy %q to %q: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("tool: copy close %q: %w", dst, err)
	}
	return nil
}

// RemoveTree recursively removes path. When ctx is non-nil a write grant on
// path is required. An empty path fails immediately.
func RemoveTree(path string, ctx *allowlist.Context) error {
	if path == "" {
		return ErrDenied
	}
	if ctx != nil {
		if err := ctx.Check(path, allowlist.Write); err != nil {
			return ErrDenied
		}
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("tool: remove %q: %w", path, err)
	}
	return nil
}
