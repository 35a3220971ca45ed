package appcage

import "errors"

// Sentinel errors returned by the appcage package.
var (
	// ErrSandboxSeal indicates path visibility could not be sealed.
	// This is fatal to sandbox setup.
	ErrSandboxSeal = errors.New("appcage: failed to seal path visibility")

	// ErrSandboxRestrict indicates the syscall-class restriction could not
	// be applied. This is fatal to sandbox setup.
	ErrSandboxRestrict = errors.New("appcage: failed to apply syscall restrictions")

	// ErrConfigInvalid indicates a missing or malformed configuration value.
	ErrConfigInvalid = errors.New("appcage: invalid configuration")
)
