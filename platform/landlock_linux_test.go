//go:build linux

package platform

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// saveLandlockFns saves the landlock function variables and restores them
// when the test finishes.
func saveLandlockFns(t *testing.T) {
	t.Helper()
	origVersion := landlockVersionFn
	origRestrict := restrictPathsFn
	origStat := statFn
	t.Cleanup(func() {
		landlockVersionFn = origVersion
		restrictPathsFn = origRestrict
		statFn = origStat
	})
}

// fakeFileInfo implements fs.FileInfo with a configurable directory bit.
type fakeFileInfo struct {
	dir bool
}

func (f fakeFileInfo) Name() string       { return "fake" }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() any           { return nil }

func mockStat(t *testing.T, dirs map[string]bool) {
	t.Helper()
	statFn = func(path string) (os.FileInfo, error) {
		isDir, ok := dirs[path]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return fakeFileInfo{dir: isDir}, nil
	}
}

func TestAvailable(t *testing.T) {
	saveLandlockFns(t)

	landlockVersionFn = func() (int, error) { return 3, nil }
	if !newLinuxPlatform().Available() {
		t.Error("Available() = false with ABI v3")
	}

	landlockVersionFn = func() (int, error) { return 0, errors.New("ENOSYS") }
	if newLinuxPlatform().Available() {
		t.Error("Available() = true although the probe failed")
	}
}

func TestVeilPathAccumulatesAndSealApplies(t *testing.T) {
	saveLandlockFns(t)
	mockStat(t, map[string]bool{
		"/src":     true,
		"/tmp/out": true,
		"/app.db":  false,
	})

	var applied []landlock.Rule
	calls := 0
	restrictPathsFn = func(rules ...landlock.Rule) error {
		calls++
		applied = rules
		return nil
	}

	p := newLinuxPlatform()
	if err := p.VeilPath("/src", "r"); err != nil {
		t.Fatalf("VeilPath(/src): %v", err)
	}
	if err := p.VeilPath("/tmp/out", "rwc"); err != nil {
		t.Fatalf("VeilPath(/tmp/out): %v", err)
	}
	if err := p.VeilPath("/app.db", "rwc"); err != nil {
		t.Fatalf("VeilPath(/app.db): %v", err)
	}
	if calls != 0 {
		t.Fatalf("restriction applied before SealPaths (%d calls)", calls)
	}

	if err := p.SealPaths(); err != nil {
		t.Fatalf("SealPaths: %v", err)
	}
	if calls != 1 {
		t.Fatalf("restrictPaths called %d times, want 1", calls)
	}
	if len(applied) != 3 {
		t.Errorf("applied %d rules, want 3", len(applied))
	}
}

func TestVeilPathAfterSealFails(t *testing.T) {
	saveLandlockFns(t)
	mockStat(t, map[string]bool{"/src": true})
	restrictPathsFn = func(rules ...landlock.Rule) error { return nil }

	p := newLinuxPlatform()
	if err := p.SealPaths(); err != nil {
		t.Fatalf("SealPaths: %v", err)
	}
	if err := p.VeilPath("/src", "r"); err == nil {
		t.Fatal("VeilPath succeeded after SealPaths")
	}
	if err := p.SealPaths(); err == nil {
		t.Fatal("second SealPaths succeeded")
	}
}

func TestVeilPathMissingTarget(t *testing.T) {
	saveLandlockFns(t)
	mockStat(t, nil)

	p := newLinuxPlatform()
	if err := p.VeilPath("/does/not/exist", "r"); err == nil {
		t.Fatal("VeilPath succeeded for a missing path")
	}
	if len(p.rules) != 0 {
		t.Error("failed VeilPath left a rule behind")
	}
}

func TestSealPathsPropagatesRestrictError(t *testing.T) {
	saveLandlockFns(t)
	restrictPathsFn = func(rules ...landlock.Rule) error {
		return errors.New("landlock: EACCES")
	}

	p := newLinuxPlatform()
	if err := p.SealPaths(); err == nil {
		t.Fatal("SealPaths swallowed the restriction error")
	}
	if p.sealed {
		t.Error("platform marked sealed despite restriction failure")
	}
}

func TestRestrictSyscallsRejectsUnknownPromise(t *testing.T) {
	p := newLinuxPlatform()
	if err := p.RestrictSyscalls("stdio bogus", "stdio"); err == nil {
		t.Error("unknown process promise accepted")
	}
	if err := p.RestrictSyscalls("stdio", "stdio bogus"); err == nil {
		t.Error("unknown exec promise accepted")
	}
}

func TestRestrictSyscallsUnionsPromiseSets(t *testing.T) {
	saveSeccompFns(t)

	seccompPrctlFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		return 0, 0, 0
	}
	var applied bool
	seccompInstallFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		applied = true
		return 0, 0, 0
	}

	p := newLinuxPlatform()
	if err := p.RestrictSyscalls("stdio rpath", "stdio exec"); err != nil {
		t.Fatalf("RestrictSyscalls: %v", err)
	}
	if !applied {
		t.Error("seccomp filter was not applied")
	}
}
