//go:build openbsd

package platform

// detectPlatform returns the unveil/pledge platform on OpenBSD.
func detectPlatform() Platform {
	return &openbsdPlatform{}
}
