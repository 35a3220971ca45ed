// Package allowlist implements the userspace path allow-list: an ordered set
// of path-prefix grants that is populated once, sealed, and then consulted
// before every filesystem operation the tool capability performs. It is
// deliberately independent of the kernel layer: on platforms without a
// path-visibility primitive this is the only enforcement.
package allowlist

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/zhangyunhao116/appcage/internal/pathutil"
)

// Perm is a bitmask of permissions attached to an allow-list entry.
type Perm uint8

const (
	// Read permits reading files and listing directories under the prefix.
	Read Perm = 1 << iota
	// Write permits modifying and deleting existing entries under the prefix.
	Write
	// Create permits creating new entries under the prefix.
	Create
)

// String returns the "rwc"-style representation of the permission set.
func (p Perm) String() string {
	buf := make([]byte, 0, 3)
	if p&Read != 0 {
		buf = append(buf, 'r')
	}
	if p&Write != 0 {
		buf = append(buf, 'w')
	}
	if p&Create != 0 {
		buf = append(buf, 'c')
	}
	return string(buf)
}

// Sentinel errors returned by the allowlist package.
var (
	// ErrSealed indicates an Add was attempted after the context was sealed.
	ErrSealed = errors.New("allowlist: context is sealed")

	// ErrDenied indicates the checked path or operation is not covered by
	// any grant. Malformed input is reported identically so callers cannot
	// probe the shape of the policy.
	ErrDenied = errors.New("allowlist: operation denied")
)

// entry is a single path-prefix grant.
type entry struct {
	prefix string
	perms  Perm
}

// Context is an append-until-sealed set of path grants. The intended
// lifecycle is: create at startup, populate from the manifest or platform
// defaults, Seal once, then Check for the remaining process lifetime.
// No locking is provided; sealing must happen before any concurrent reader
// exists.
type Context struct {
	entries []entry
	sealed  bool
	logger  *slog.Logger
}

// New returns an empty, unsealed Context. A nil logger discards log output.
func New(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{logger: logger}
}

// ParsePerm converts a permission string (any combination of 'r', 'w', 'c')
// into a Perm. Empty or unknown characters are rejected.
func ParsePerm(perms string) (Perm, error) {
	if perms == "" {
		return 0, fmt.Errorf("allowlist: empty permission string")
	}
	var p Perm
	for i := 0; i < len(perms); i++ {
		switch perms[i] {
		case 'r':
			p |= Read
		case 'w':
			p |= Write
		case 'c':
			p |= Create
		default:
			return 0, fmt.Errorf("allowlist: unknown permission %q", perms[i])
		}
	}
	return p, nil
}

// Add appends a grant for path with the given permission string. Add fails
// after Seal without mutating the entry set. The path is cleaned; relative
// paths are accepted but callers normally pass absolute ones.
func (c *Context) Add(path, perms string) error {
	if c.sealed {
		return ErrSealed
	}
	if path == "" {
		return fmt.Errorf("allowlist: empty path")
	}
	p, err := ParsePerm(perms)
	if err != nil {
		return err
	}
	c.entries = append(c.entries, entry{prefix: filepath.Clean(path), perms: p})
	return nil
}

// Seal freezes the context. Sealing twice is harmless.
func (c *Context) Seal() {
	c.sealed = true
}

// Sealed reports whether the context has been sealed.
func (c *Context) Sealed() bool {
	return c.sealed
}

// Len returns the number of grants.
func (c *Context) Len() int {
	return len(c.entries)
}

// Check reports whether op is permitted on path: some grant's prefix must be
// a component-wise ancestor of path and its permissions must include every
// bit of op. A path with no covering grant is denied, as is an empty path or
// zero op.
func (c *Context) Check(path string, op Perm) error {
	if path == "" || op == 0 {
		return ErrDenied
	}
	path = filepath.Clean(path)
	for _, e := range c.entries {
		if e.perms&op != op {
			continue
		}
		if pathutil.HasPrefix(path, e.prefix) {
			return nil
		}
	}
	c.logger.Debug("allowlist denied", "path", path, "op", op.String())
	return ErrDenied
}
