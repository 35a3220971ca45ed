//go:build linux

package platform

import (
	"fmt"
	"runtime"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BPF instruction constants for the seccomp filter.
const (
	bpfLD  = 0x00
	bpfJMP = 0x05
	bpfRET = 0x06
	bpfW   = 0x00
	bpfABS = 0x20
	bpfJEQ = 0x10
	bpfK   = 0x00

	seccompSetModeFilter  = 1 // SECCOMP_SET_MODE_FILTER
	seccompFilterFlagSync = 1 // SECCOMP_FILTER_FLAG_TSYNC
	seccompRetAllow       = 0x7fff0000
	seccompRetErrno       = 0x00050000
	seccompRetKill        = 0x00000000

	auditArchX86_64  = 0xc000003e
	auditArchAarch64 = 0xc00000b7

	// Offsets into struct seccomp_data.
	seccompDataArchOffset = 4
	seccompDataArg0Offset = 16

	afUnix = 1

	prSetNoNewPrivs = 38
)

// sockFprog is the BPF program structure for seccomp.
type sockFprog struct {
	len    uint16
	_      [6]byte // padding
	filter unsafe.Pointer
}

// sockFilter is a single BPF instruction.
type sockFilter struct {
	code uint16
	jt   uint8
	jf   uint8
	k    uint32
}

// knownPromises is the pledge-style class vocabulary accepted by
// RestrictSyscalls. Unknown names are rejected, matching pledge(2).
var knownPromises = map[string]bool{
	"stdio": true,
	"rpath": true,
	"wpath": true,
	"cpath": true,
	"flock": true,
	"inet":  true,
	"dns":   true,
	"unix":  true,
	"proc":  true,
	"exec":  true,
	"fattr": true,
}

// promiseSet is a parsed promise string.
type promiseSet map[string]bool

// parsePromises splits a space-separated promise string and validates each
// class name. The empty string yields an empty set (deny everything the
// filter covers).
func parsePromises(s string) (promiseSet, error) {
	set := make(promiseSet)
	for _, name := range strings.Fields(s) {
		if !knownPromises[name] {
			return nil, fmt.Errorf("platform: unknown promise %q", name)
		}
		set[name] = true
	}
	return set, nil
}

// seccompSyscalls holds architecture-specific syscall numbers used by the
// seccomp BPF filter.
type seccompSyscalls struct {
	auditArch   uint32
	sysSocket   uint32
	sysPtrace   uint32
	sysMount    uint32
	sysUmount2  uint32
	sysReboot   uint32
	sysSwapon   uint32
	sysSwapoff  uint32
	sysMknod    uint32
	sysMknodat  uint32
	sysExecve   uint32
	sysExecveat uint32
}

// seccompSyscallsFor returns the syscall numbers for the given GOARCH
// string. Returns an error for unsupported architectures.
func seccompSyscallsFor(goarch string) (seccompSyscalls, error) {
	switch goarch {
	case "amd64":
		return seccompSyscalls{
			auditArch:   auditArchX86_64,
			sysSocket:   41,
			sysPtrace:   101,
			sysMount:    165,
			sysUmount2:  166,
			sysReboot:   169,
			sysSwapon:   167,
			sysSwapoff:  168,
			sysMknod:    133,
			sysMknodat:  259,
			sysExecve:   59,
			sysExecveat: 322,
		}, nil
	case "arm64":
		return seccompSyscalls{
			auditArch:   auditArchAarch64,
			sysSocket:   198,
			sysPtrace:   117,
			sysMount:    40,
			sysUmount2:  39,
			sysReboot:   142,
			sysSwapon:   224,
			sysSwapoff:  225,
			sysMknod:    0, // arm64 has no mknod, only mknodat
			sysMknodat:  33,
			sysExecve:   221,
			sysExecveat: 281,
		}, nil
	default:
		return seccompSyscalls{}, fmt.Errorf("platform: unsupported architecture for seccomp: %s", goarch)
	}
}

// seccompSyscallsFn is a function variable for syscall lookup, allowing
// tests to override it.
var seccompSyscallsFn = func() (seccompSyscalls, error) {
	return seccompSyscallsFor(runtime.GOARCH)
}

// seccompPrctlFn is a function variable for the no_new_privs prctl. Tests
// override this to avoid irreversible process changes.
var seccompPrctlFn = syscall.Syscall

// seccompInstallFn is a function variable for the seccomp(2) syscall that
// installs the filter. Tests override this to avoid irreversible process
// changes.
var seccompInstallFn = syscall.Syscall

// blockedSyscalls derives the deny list from the promise set. A fixed set of
// privileged syscalls is always blocked; execve/execveat are blocked unless
// "exec" is promised; socket is blocked entirely when neither "inet" nor
// "dns" is promised. The returned bool reports whether socket needs an
// AF_UNIX argument check instead (network promised, "unix" not).
func blockedSyscalls(sc seccompSyscalls, pr promiseSet) (blocked []uint32, socketArgCheck bool) {
	blocked = []uint32{
		sc.sysPtrace,
		sc.sysMount,
		sc.sysUmount2,
		sc.sysReboot,
		sc.sysSwapon,
		sc.sysSwapoff,
	}
	if sc.sysMknod != 0 {
		blocked = append(blocked, sc.sysMknod)
	}
	if sc.sysMknodat != 0 {
		blocked = append(blocked, sc.sysMknodat)
	}
	if !pr["exec"] {
		blocked = append(blocked, sc.sysExecve)
		if sc.sysExecveat != 0 {
			blocked = append(blocked, sc.sysExecveat)
		}
	}
	switch {
	case !pr["inet"] && !pr["dns"] && !pr["unix"]:
		blocked = append(blocked, sc.sysSocket)
	case !pr["unix"]:
		socketArgCheck = true
	}
	return blocked, socketArgCheck
}

// buildPromiseFilter constructs the BPF program. Layout:
//
//	[0]          load arch
//	[1]          arch mismatch -> KILL
//	[2]          load syscall nr
//	[3]          (socketArgCheck) SYS_socket -> arg section
//	[..]         blocked syscall checks -> EPERM
//	[allow]      RET ALLOW
//	[arg section](socketArgCheck) load args[0]; AF_UNIX -> EPERM; RET ALLOW
//	[eperm]      RET EPERM
//	[kill]       RET KILL
func buildPromiseFilter(sc seccompSyscalls, pr promiseSet) []sockFilter {
	blocked, socketArgCheck := blockedSyscalls(sc, pr)

	n := len(blocked)
	prologue := 3
	if socketArgCheck {
		prologue = 4
	}
	allowIdx := prologue + n
	argIdx := allowIdx + 1
	epermIdx := argIdx
	if socketArgCheck {
		epermIdx = argIdx + 3
	}
	killIdx := epermIdx + 1

	filter := make([]sockFilter, 0, killIdx+1)

	// [0] Load architecture.
	filter = append(filter, sockFilter{code: bpfLD | bpfW | bpfABS, k: seccompDataArchOffset})
	// [1] Arch mismatch jumps to KILL.
	filter = append(filter, sockFilter{code: bpfJMP | bpfJEQ | bpfK, jt: 0, jf: uint8(killIdx - 2), k: sc.auditArch}) //nolint:gosec
	// [2] Load syscall number.
	filter = append(filter, sockFilter{code: bpfLD | bpfW | bpfABS, k: 0})
	if socketArgCheck {
		// [3] SYS_socket dispatches to the argument section.
		filter = append(filter, sockFilter{code: bpfJMP | bpfJEQ | bpfK, jt: uint8(argIdx - 4), jf: 0, k: sc.sysSocket}) //nolint:gosec
	}
	// Blocked syscall checks, each jumping to EPERM on match.
	for i, nr := range blocked {
		idx := prologue + i
		filter = append(filter, sockFilter{code: bpfJMP | bpfJEQ | bpfK, jt: uint8(epermIdx - idx - 1), jf: 0, k: nr}) //nolint:gosec
	}
	// RET ALLOW: no dangerous syscall matched.
	filter = append(filter, sockFilter{code: bpfRET | bpfK, k: seccompRetAllow})
	if socketArgCheck {
		// Load first argument (socket domain).
		filter = append(filter, sockFilter{code: bpfLD | bpfW | bpfABS, k: seccompDataArg0Offset})
		// AF_UNIX -> EPERM, anything else -> ALLOW.
		filter = append(filter, sockFilter{code: bpfJMP | bpfJEQ | bpfK, jt: 1, jf: 0, k: afUnix})
		filter = append(filter, sockFilter{code: bpfRET | bpfK, k: seccompRetAllow})
	}
	// RET EPERM.
	filter = append(filter, sockFilter{code: bpfRET | bpfK, k: seccompRetErrno | uint32(syscall.EPERM)})
	// RET KILL: architecture mismatch.
	filter = append(filter, sockFilter{code: bpfRET | bpfK, k: seccompRetKill})

	return filter
}

// applyPromiseFilter installs the seccomp filter derived from the promise
// set on every thread of the current process. no_new_privs is set first,
// which unprivileged seccomp requires. The filter is self-applied inside an
// already multithreaded runtime, so installation goes through seccomp(2)
// with SECCOMP_FILTER_FLAG_TSYNC; a prctl install would cover only the
// calling thread and leave goroutines on sibling threads unrestricted.
func applyPromiseFilter(pr promiseSet) error {
	sc, err := seccompSyscallsFn()
	if err != nil {
		return err
	}

	filter := buildPromiseFilter(sc, pr)
	prog := sockFprog{
		len:    uint16(len(filter)), //nolint:gosec // bounded by seccomp BPF limits
		filter: unsafe.Pointer(&filter[0]),
	}

	if _, _, errno := seccompPrctlFn(syscall.SYS_PRCTL, prSetNoNewPrivs, 1, 0); errno != 0 {
		return fmt.Errorf("platform: prctl no_new_privs: %w", errno)
	}
	ret, _, errno := seccompInstallFn(
		unix.SYS_SECCOMP,
		seccompSetModeFilter,
		seccompFilterFlagSync,
		uintptr(unsafe.Pointer(&prog)),
	)
	if errno != 0 {
		return fmt.Errorf("platform: seccomp filter: %w", errno)
	}
	// With TSYNC a nonzero return is the ID of a thread that could not be
	// synchronized.
	if ret != 0 {
		return fmt.Errorf("platform: seccomp filter: thread %d could not be synchronized", ret)
	}
	return nil
}
