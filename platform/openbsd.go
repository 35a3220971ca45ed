//go:build openbsd

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Function variables for the kernel calls, overridden in tests to avoid
// irreversibly restricting the test process.
var (
	unveilFn      = unix.Unveil
	unveilBlockFn = unix.UnveilBlock
	pledgeFn      = unix.Pledge
)

// openbsdPlatform implements the kernel primitive surface using unveil(2)
// and pledge(2).
type openbsdPlatform struct{}

func (p *openbsdPlatform) Name() string { return "openbsd-pledge" }

// Available reports true: unveil and pledge exist on every supported
// OpenBSD release.
func (p *openbsdPlatform) Available() bool { return true }

// VeilPath registers a visibility grant via unveil(2). The permission
// characters map directly onto unveil's: 'r' read, 'w' write, 'c'
// create/remove. Once SealPaths has run the kernel itself rejects further
// grants; that rejection is surfaced to the caller.
func (p *openbsdPlatform) VeilPath(path, perms string) error {
	if path == "" {
		return fmt.Errorf("platform: empty unveil path")
	}
	if err := unveilFn(path, perms); err != nil {
		return fmt.Errorf("platform: unveil %q %q: %w", path, perms, err)
	}
	return nil
}

// SealPaths locks the unveil view, the unveil(NULL, NULL) call.
func (p *openbsdPlatform) SealPaths() error {
	if err := unveilBlockFn(); err != nil {
		return fmt.Errorf("platform: unveil block: %w", err)
	}
	return nil
}

// RestrictSyscalls applies pledge(2) with the given promise strings.
func (p *openbsdPlatform) RestrictSyscalls(promises, execPromises string) error {
	if err := pledgeFn(promises, execPromises); err != nil {
		return fmt.Errorf("platform: pledge %q: %w", promises, err)
	}
	return nil
}

func (p *openbsdPlatform) Capabilities() Capabilities {
	return Capabilities{PathVisibility: true, SyscallFilter: true}
}
