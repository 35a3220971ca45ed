//go:build linux

package platform

// detectPlatform returns the Landlock + seccomp platform on Linux.
func detectPlatform() Platform {
	return newLinuxPlatform()
}
