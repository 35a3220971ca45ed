// Package platform abstracts the kernel-level capability primitives this
// library bridges to: path-visibility restriction, path sealing, and
// syscall-class restriction. Most users should use the top-level appcage
// package, which probes and drives the platform automatically. Import this
// package directly only to inspect capabilities or supply a custom Platform.
package platform

// Platform is the kernel primitive surface for one operating system.
// Implementations restrict the calling process itself; there is no child
// wrapping involved.
type Platform interface {
	// Name returns a human-readable identifier for this platform
	// (e.g., "openbsd-pledge", "linux-landlock").
	Name() string

	// Available reports whether the kernel primitives are functional on the
	// current system. A false result is "not supported", never an error.
	Available() bool

	// VeilPath registers a path-visibility grant. perms is a combination of
	// 'r' (read), 'w' (write), 'c' (create). Grants accumulate until
	// SealPaths; registering after sealing fails.
	VeilPath(path, perms string) error

	// SealPaths freezes the set of visible paths. After SealPaths no further
	// VeilPath call can succeed.
	SealPaths() error

	// RestrictSyscalls limits the process to the named syscall classes.
	// promises applies to the current process, execPromises to any future
	// executed image. Class names follow pledge(2) vocabulary ("stdio",
	// "inet", "dns", "rpath", "wpath", "cpath", "flock", "proc", "exec",
	// "fattr").
	RestrictSyscalls(promises, execPromises string) error

	// Capabilities reports which primitives this platform actually enforces.
	Capabilities() Capabilities
}

// Capabilities describes which kernel primitives a platform supports.
type Capabilities struct {
	// PathVisibility indicates the platform can restrict which filesystem
	// paths the process may name at all.
	PathVisibility bool

	// SyscallFilter indicates the platform can restrict syscall classes.
	SyscallFilter bool
}

// Detect returns the Platform for the current OS.
// On openbsd: unveil(2) + pledge(2).
// On linux: Landlock + a seccomp class filter.
// Elsewhere: a no-op stub that reports Available() == false.
func Detect() Platform {
	return detectPlatform()
}
