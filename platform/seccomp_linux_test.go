//go:build linux

package platform

import (
	"errors"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

// saveSeccompFns saves the seccomp function variables and restores them when
// the test finishes.
func saveSeccompFns(t *testing.T) {
	t.Helper()
	origSyscalls := seccompSyscallsFn
	origPrctl := seccompPrctlFn
	origInstall := seccompInstallFn
	t.Cleanup(func() {
		seccompSyscallsFn = origSyscalls
		seccompPrctlFn = origPrctl
		seccompInstallFn = origInstall
	})
}

func TestParsePromises(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"baseline", "stdio inet rpath wpath cpath flock", []string{"stdio", "inet", "rpath", "wpath", "cpath", "flock"}, false},
		{"with dns", "stdio dns", []string{"stdio", "dns"}, false},
		{"empty is empty set", "", nil, false},
		{"unknown promise", "stdio tty", nil, true},
		{"extra whitespace", "  stdio   exec ", []string{"stdio", "exec"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePromises(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePromises(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePromises(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for _, name := range tt.want {
				if !got[name] {
					t.Errorf("parsePromises(%q) missing %q", tt.in, name)
				}
			}
		})
	}
}

func TestBlockedSyscallsByPromise(t *testing.T) {
	sc, err := seccompSyscallsFor("amd64")
	if err != nil {
		t.Fatal(err)
	}

	contains := func(list []uint32, nr uint32) bool {
		for _, v := range list {
			if v == nr {
				return true
			}
		}
		return false
	}

	t.Run("no exec promise blocks execve", func(t *testing.T) {
		blocked, _ := blockedSyscalls(sc, promiseSet{"stdio": true})
		if !contains(blocked, sc.sysExecve) || !contains(blocked, sc.sysExecveat) {
			t.Error("execve/execveat not blocked without exec promise")
		}
	})
	t.Run("exec promise allows execve", func(t *testing.T) {
		blocked, _ := blockedSyscalls(sc, promiseSet{"stdio": true, "exec": true})
		if contains(blocked, sc.sysExecve) {
			t.Error("execve blocked despite exec promise")
		}
	})
	t.Run("no network promise blocks socket outright", func(t *testing.T) {
		blocked, argCheck := blockedSyscalls(sc, promiseSet{"stdio": true})
		if !contains(blocked, sc.sysSocket) {
			t.Error("socket not blocked without a network promise")
		}
		if argCheck {
			t.Error("argument check requested although socket is fully blocked")
		}
	})
	t.Run("inet without unix keeps AF_UNIX check", func(t *testing.T) {
		blocked, argCheck := blockedSyscalls(sc, promiseSet{"stdio": true, "inet": true})
		if contains(blocked, sc.sysSocket) {
			t.Error("socket fully blocked despite inet promise")
		}
		if !argCheck {
			t.Error("AF_UNIX argument check missing")
		}
	})
	t.Run("privileged syscalls always blocked", func(t *testing.T) {
		all := promiseSet{}
		for name := range knownPromises {
			all[name] = true
		}
		blocked, _ := blockedSyscalls(sc, all)
		for _, nr := range []uint32{sc.sysPtrace, sc.sysMount, sc.sysUmount2, sc.sysReboot} {
			if !contains(blocked, nr) {
				t.Errorf("syscall %d not blocked under full promise set", nr)
			}
		}
	})
}

func TestBuildPromiseFilterShape(t *testing.T) {
	sc, err := seccompSyscallsFor("amd64")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		pr   promiseSet
	}{
		{"no network", promiseSet{"stdio": true}},
		{"inet without unix", promiseSet{"stdio": true, "inet": true}},
		{"full set", promiseSet{"stdio": true, "inet": true, "unix": true, "exec": true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			filter := buildPromiseFilter(sc, tt.pr)
			if len(filter) < 6 {
				t.Fatalf("filter too short: %d instructions", len(filter))
			}
			// First instruction loads the arch field.
			if filter[0].code != bpfLD|bpfW|bpfABS || filter[0].k != seccompDataArchOffset {
				t.Error("filter does not start with an arch load")
			}
			// Last instruction is the KILL for arch mismatch.
			last := filter[len(filter)-1]
			if last.code != bpfRET|bpfK || last.k != seccompRetKill {
				t.Error("filter does not end with RET KILL")
			}
			// Exactly one RET ALLOW fall-through plus, with a socket
			// argument section, one more.
			allows := 0
			for _, ins := range filter {
				if ins.code == bpfRET|bpfK && ins.k == seccompRetAllow {
					allows++
				}
			}
			_, argCheck := blockedSyscalls(sc, tt.pr)
			wantAllows := 1
			if argCheck {
				wantAllows = 2
			}
			if allows != wantAllows {
				t.Errorf("RET ALLOW count = %d, want %d", allows, wantAllows)
			}
			// All jumps must stay inside the program.
			for i, ins := range filter {
				if ins.code&bpfJMP == 0 {
					continue
				}
				if i+1+int(ins.jt) >= len(filter) || i+1+int(ins.jf) >= len(filter) {
					t.Errorf("instruction %d jumps out of program", i)
				}
			}
		})
	}
}

func TestApplyPromiseFilterSyncsAllThreads(t *testing.T) {
	saveSeccompFns(t)

	var prctlOpts []uintptr
	seccompPrctlFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		prctlOpts = append(prctlOpts, a1)
		return 0, 0, 0
	}
	var installed bool
	seccompInstallFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		installed = true
		if trap != unix.SYS_SECCOMP {
			t.Errorf("install trap = %d, want SYS_SECCOMP", trap)
		}
		if a1 != seccompSetModeFilter {
			t.Errorf("install operation = %d, want SECCOMP_SET_MODE_FILTER", a1)
		}
		// TSYNC is what extends the filter to sibling threads; without it
		// only the calling thread would be restricted.
		if a2&seccompFilterFlagSync == 0 {
			t.Error("install flags missing SECCOMP_FILTER_FLAG_TSYNC")
		}
		return 0, 0, 0
	}

	if err := applyPromiseFilter(promiseSet{"stdio": true}); err != nil {
		t.Fatalf("applyPromiseFilter: %v", err)
	}
	if len(prctlOpts) != 1 || prctlOpts[0] != prSetNoNewPrivs {
		t.Errorf("prctl options = %v, want exactly PR_SET_NO_NEW_PRIVS", prctlOpts)
	}
	if !installed {
		t.Error("filter never installed via seccomp(2)")
	}
}

func TestApplyPromiseFilterPrctlFailure(t *testing.T) {
	saveSeccompFns(t)

	seccompPrctlFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		return 0, 0, syscall.EINVAL
	}
	seccompInstallFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		t.Error("filter installed despite no_new_privs failure")
		return 0, 0, 0
	}
	if err := applyPromiseFilter(promiseSet{"stdio": true}); err == nil {
		t.Fatal("applyPromiseFilter succeeded despite prctl failure")
	}
}

func TestApplyPromiseFilterInstallFailure(t *testing.T) {
	saveSeccompFns(t)

	seccompPrctlFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
		return 0, 0, 0
	}

	t.Run("errno", func(t *testing.T) {
		seccompInstallFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
			return 0, 0, syscall.EINVAL
		}
		if err := applyPromiseFilter(promiseSet{"stdio": true}); err == nil {
			t.Fatal("applyPromiseFilter succeeded despite seccomp failure")
		}
	})
	t.Run("unsynchronized thread", func(t *testing.T) {
		seccompInstallFn = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, syscall.Errno) {
			return 12345, 0, 0
		}
		err := applyPromiseFilter(promiseSet{"stdio": true})
		if err == nil {
			t.Fatal("applyPromiseFilter succeeded despite a thread failing to synchronize")
		}
	})
}

func TestApplyPromiseFilterUnsupportedArch(t *testing.T) {
	saveSeccompFns(t)

	seccompSyscallsFn = func() (seccompSyscalls, error) {
		return seccompSyscalls{}, errors.New("no such arch")
	}
	if err := applyPromiseFilter(promiseSet{"stdio": true}); err == nil {
		t.Fatal("applyPromiseFilter succeeded on unsupported arch")
	}
}

func TestSeccompSyscallsForUnsupported(t *testing.T) {
	if _, err := seccompSyscallsFor("riscv64"); err == nil {
		t.Error("seccompSyscallsFor accepted an unsupported arch")
	}
}
