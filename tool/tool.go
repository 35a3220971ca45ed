// Package tool mediates the filesystem and process operations build and
// maintenance scripts are allowed to perform. Every traversal, copy,
// recursive delete, and child-process spawn passes through here and is
// checked against a sealed allow-list context first, independently of the
// kernel layer. On platforms without a kernel primitive this is the only
// enforcement.
package tool

import (
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Sentinel errors returned by the tool package. Policy denials and malformed
// input are reported identically so callers cannot probe the policy shape.
var (
	// ErrDenied indicates the operation was rejected before any side effect:
	// a disallowed command, a path outside the allow-list, or missing input.
	ErrDenied = errors.New("tool: operation denied")
)

// allowedCommands is the fixed set of compiler and archiver basenames that
// may be spawned. Shells, interpreters, and generic utilities are
// deliberately absent.
var allowedCommands = map[string]bool{
	"cc":         true,
	"c++":        true,
	"gcc":        true,
	"g++":        true,
	"clang":      true,
	"clang++":    true,
	"cpp":        true,
	"ar":         true,
	"ranlib":     true,
	"strip":      true,
	"ld":         true,
	"as":         true,
	"make":       true,
	"pkg-config": true,
}

// CheckAllowlist reports whether command may be spawned. The command may
// carry a leading path ("/usr/bin/cc") and a trailing version suffix of a
// hyphen followed by digits ("clang-18"); both are stripped before the
// basename is looked up. Empty input is denied.
func CheckAllowlist(command string) bool {
	if command == "" {
		return false
	}
	base := command
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		return false
	}
	if allowedCommands[base] {
		return true
	}
	// Accept a numeric version suffix: "clang-18", "gcc-13".
	if i := strings.LastIndexByte(base, '-'); i > 0 && i < len(base)-1 {
		suffix := base[i+1:]
		for j := 0; j < len(suffix); j++ {
			if suffix[j] < '0' || suffix[j] > '9' {
				return false
			}
		}
		return allowedCommands[base[:i]]
	}
	return false
}

// nopLogger returns logger, or a discarding logger when nil.
func nopLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
