// Package appcage enforces least-privilege capabilities for untrusted
// application scripts. Each app declares a manifest of filesystem paths and
// network hosts it needs; appcage enforces exactly that at three independent
// layers:
//
//   - a kernel sandbox bridge that translates the manifest into
//     path-visibility and syscall-class restrictions (unveil/pledge on
//     OpenBSD, Landlock + seccomp on Linux, a logged no-op elsewhere)
//   - a userspace path allow-list (package allowlist) re-validated by the
//     tool capability (package tool) before every filesystem and
//     process-spawn operation
//   - a hardened outbound HTTP client (package httpcap) that is the sole
//     network egress path for scripts, with a host allow-list and
//     injection defenses
//
// No layer trusts that another layer's check already ran. On platforms
// without kernel primitives the userspace allow-list is the only
// enforcement.
//
// Basic usage at process start:
//
//	err := appcage.Apply(manifest, appcage.BridgeConfig{
//	    DBPath:       "/var/db/app.db",
//	    CABundlePath: "/etc/ssl/cert.pem",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Build/maintenance mode instead initializes a sealed allow-list context and
// mirrors it at the kernel layer:
//
//	ctx, err := appcage.InitToolMode(appcage.ToolModeLayout{
//	    SourceDir: srcDir,
//	    TempDir:   tmpDir,
//	    OutputDir: outDir,
//	})
package appcage
