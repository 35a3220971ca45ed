//go:build linux

package platform

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// sysLandlockCreateRuleset is the landlock_create_ruleset syscall number,
// used only for the ABI version probe.
const sysLandlockCreateRuleset = 444

// landlockVersionFn queries the Landlock ABI version. Overridden in tests.
var landlockVersionFn = func() (int, error) {
	// Flag 1 is LANDLOCK_CREATE_RULESET_VERSION: query without creating.
	version, _, errno := syscall.Syscall(uintptr(sysLandlockCreateRuleset), 0, 0, 1)
	if errno != 0 {
		return 0, errno
	}
	return int(version), nil
}

// restrictPathsFn applies the accumulated Landlock rules. Overridden in
// tests to avoid restricting the test process.
var restrictPathsFn = func(rules ...landlock.Rule) error {
	return landlock.V5.BestEffort().RestrictPaths(rules...)
}

// statFn resolves whether a grant target is a directory. Overridden in tests.
var statFn = os.Stat

// linuxPlatform mirrors the unveil/pledge primitives on Linux: path
// visibility through Landlock, syscall classes through a seccomp filter.
// Landlock applies a ruleset exactly once, so VeilPath accumulates grants
// and SealPaths performs the single restriction.
type linuxPlatform struct {
	rules  []landlock.Rule
	sealed bool
}

func newLinuxPlatform() *linuxPlatform {
	return &linuxPlatform{}
}

func (p *linuxPlatform) Name() string { return "linux-landlock" }

// Available reports whether the running kernel supports Landlock.
// A failed probe means "not supported", never an error.
func (p *linuxPlatform) Available() bool {
	v, err := landlockVersionFn()
	return err == nil && v >= 1
}

// VeilPath records a visibility grant. Grants with 'w' or 'c' become
// read-write rules, read-only otherwise. The target must exist so the rule
// kind (directory or file) can be determined; a missing target is a
// per-entry failure the caller may treat as non-fatal.
func (p *linuxPlatform) VeilPath(path, perms string) error {
	if p.sealed {
		return fmt.Errorf("platform: landlock ruleset already sealed, cannot add %q", path)
	}
	if path == "" {
		return fmt.Errorf("platform: empty landlock path")
	}
	info, err := statFn(path)
	if err != nil {
		return fmt.Errorf("platform: landlock grant %q: %w", path, err)
	}
	writable := strings.ContainsAny(perms, "wc")
	switch {
	case info.IsDir() && writable:
		p.rules = append(p.rules, landlock.RWDirs(path))
	case info.IsDir():
		p.rules = append(p.rules, landlock.RODirs(path))
	case writable:
		p.rules = append(p.rules, landlock.RWFiles(path))
	default:
		p.rules = append(p.rules, landlock.ROFiles(path))
	}
	return nil
}

// SealPaths applies the accumulated rules in one best-effort restriction and
// freezes the set. Sealing twice fails, matching unveil-after-lock.
func (p *linuxPlatform) SealPaths() error {
	if p.sealed {
		return fmt.Errorf("platform: landlock ruleset already sealed")
	}
	if err := restrictPathsFn(p.rules...); err != nil {
		return fmt.Errorf("platform: landlock restrict: %w", err)
	}
	p.sealed = true
	return nil
}

// RestrictSyscalls translates the promise sets into a seccomp deny filter.
// Seccomp filters are inherited across execve, so the process and exec
// promise sets collapse into their union before the filter is built.
func (p *linuxPlatform) RestrictSyscalls(promises, execPromises string) error {
	procSet, err := parsePromises(promises)
	if err != nil {
		return err
	}
	execSet, err := parsePromises(execPromises)
	if err != nil {
		return err
	}
	for name := range execSet {
		procSet[name] = true
	}
	return applyPromiseFilter(procSet)
}

func (p *linuxPlatform) Capabilities() Capabilities {
	return Capabilities{PathVisibility: p.Available(), SyscallFilter: true}
}
