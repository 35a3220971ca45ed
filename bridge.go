package appcage

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/zhangyunhao116/appcage/allowlist"
	"github.com/zhangyunhao116/appcage/platform"
)

// basePromises are the syscall classes every app script needs: basic I/O,
// network accept/connect, file read/write/create, and file locking.
const basePromises = "stdio inet rpath wpath cpath flock"

// toolPromises extends the baseline with the classes build scripts need to
// invoke external compilers: process spawning and file-attribute operations.
const toolPromises = basePromises + " proc exec fattr"

// detectPlatformFn is a function variable for platform detection, overridden
// in tests.
var detectPlatformFn = platform.Detect

// BridgeConfig configures the kernel sandbox bridge for app mode.
type BridgeConfig struct {
	// DBPath is the process's own database file. It is registered
	// read-write-create regardless of manifest declarations: the runtime
	// itself always needs it. Empty means no database.
	DBPath string

	// CABundlePath is the TLS trust-anchor bundle, registered read-only
	// when non-empty.
	CABundlePath string

	// Logger is the structured logger. If nil, log output is discarded.
	Logger *slog.Logger
}

// ToolModeLayout configures build/maintenance mode.
type ToolModeLayout struct {
	// SourceDir is the application source tree, granted read-only.
	SourceDir string

	// TempDir is the scratch directory, granted read-write-create.
	TempDir string

	// OutputDir receives build artifacts, granted read-write-create.
	OutputDir string

	// ToolchainRoots are the compiler toolchain's installation roots,
	// granted read-only. Nil selects the platform default set.
	ToolchainRoots []string

	// StaticLibDirs are the platform static library directories, granted
	// read-only. Nil selects the platform default.
	StaticLibDirs []string

	// Logger is the structured logger. If nil, log output is discarded.
	Logger *slog.Logger
}

// defaultToolchainRoots is the platform-dependent set of directories an
// external compiler needs to read.
var defaultToolchainRoots = []string{
	"/usr/bin",
	"/usr/lib",
	"/usr/libexec",
	"/usr/local/bin",
	"/usr/local/lib",
	"/etc",
}

// defaultStaticLibDirs is where the platform keeps its static libraries.
var defaultStaticLibDirs = []string{"/usr/lib"}

// Apply translates the manifest into kernel-level restrictions for app mode.
//
// If the manifest is absent or the platform offers no kernel primitive, Apply
// logs and returns nil (permissive; the userspace layers still enforce).
// Otherwise it registers the database file, the declared read and write
// paths, and the CA bundle; seals path visibility; and applies the derived
// syscall classes. Per-entry registration failures are logged and non-fatal.
// Failure to seal or to restrict syscalls is fatal and reported.
func Apply(m Manifest, cfg BridgeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !m.Present {
		logger.Info("no manifest present, kernel sandbox not applied")
		return nil
	}
	plat := detectPlatformFn()
	if !plat.Available() {
		logger.Info("kernel sandbox unavailable, relying on userspace enforcement",
			"platform", plat.Name())
		return nil
	}

	// The runtime's own database comes first, independent of what the
	// manifest declares.
	if cfg.DBPath != "" {
		veilLogged(plat, logger, cfg.DBPath, "rwc")
	}
	for _, p := range m.FSRead {
		veilLogged(plat, logger, p, "r")
	}
	for _, p := range m.FSWrite {
		veilLogged(plat, logger, p, "rwc")
	}
	if cfg.CABundlePath != "" {
		veilLogged(plat, logger, cfg.CABundlePath, "r")
	}

	if err := plat.SealPaths(); err != nil {
		logger.Error("sealing path visibility failed", "error", err)
		return fmt.Errorf("%w: %v", ErrSandboxSeal, err)
	}

	promises := basePromises
	if len(m.Hosts) > 0 {
		promises += " dns"
	}
	if err := plat.RestrictSyscalls(promises, promises); err != nil {
		logger.Error("applying syscall restrictions failed", "error", err, "promises", promises)
		return fmt.Errorf("%w: %v", ErrSandboxRestrict, err)
	}

	logger.Info("kernel sandbox applied",
		"platform", plat.Name(),
		"read_paths", len(m.FSRead),
		"write_paths", len(m.FSWrite),
		"promises", promises)
	return nil
}

// InitToolMode initializes build/maintenance mode: it populates and seals a
// userspace allow-list context covering the source tree, scratch and output
// directories, and the compiler toolchain, and mirrors the same grants at
// the kernel layer where one exists. The returned context is sealed and
// ready to be passed to the tool capability.
func InitToolMode(layout ToolModeLayout) (*allowlist.Context, error) {
	logger := layout.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if layout.SourceDir == "" || layout.TempDir == "" || layout.OutputDir == "" {
		return nil, fmt.Errorf("%w: source, temp, and output directories are required", ErrConfigInvalid)
	}

	roots := layout.ToolchainRoots
	if roots == nil {
		roots = defaultToolchainRoots
	}
	libDirs := layout.StaticLibDirs
	if libDirs == nil {
		libDirs = defaultStaticLibDirs
	}

	type grant struct {
		path  string
		perms string
	}
	grants := make([]grant, 0, 3+len(roots)+len(libDirs))
	grants = append(grants,
		grant{layout.SourceDir, "r"},
		grant{layout.TempDir, "rwc"},
		grant{layout.OutputDir, "rwc"},
	)
	for _, r := range roots {
		grants = append(grants, grant{r, "r"})
	}
	for _, d := range libDirs {
		grants = append(grants, grant{d, "r"})
	}

	ctx := allowlist.New(logger)
	for _, g := range grants {
		if err := ctx.Add(g.path, g.perms); err != nil {
			return nil, fmt.Errorf("%w: grant %q: %v", ErrConfigInvalid, g.path, err)
		}
	}
	ctx.Seal()

	plat := detectPlatformFn()
	if !plat.Available() {
		logger.Info("kernel sandbox unavailable, tool mode uses allow-list only",
			"platform", plat.Name())
		return ctx, nil
	}

	for _, g := range grants {
		veilLogged(plat, logger, g.path, g.perms)
	}
	if err := plat.SealPaths(); err != nil {
		logger.Error("sealing path visibility failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSandboxSeal, err)
	}
	if err := plat.RestrictSyscalls(toolPromises, toolPromises); err != nil {
		logger.Error("applying syscall restrictions failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSandboxRestrict, err)
	}

	logger.Info("tool mode sandbox applied", "platform", plat.Name(), "grants", len(grants))
	return ctx, nil
}

// veilLogged registers a single path grant, logging failures without
// propagating them. Registration is best-effort; sealing is not.
func veilLogged(plat platform.Platform, logger *slog.Logger, path, perms string) {
	if err := plat.VeilPath(path, perms); err != nil {
		logger.Warn("path registration failed", "path", path, "perms", perms, "error", err)
	}
}
