//go:build !openbsd && !linux

package platform

// detectPlatform returns the unsupported stub on operating systems without a
// kernel capability primitive.
func detectPlatform() Platform {
	return &unsupportedPlatform{}
}
