package platform

// unsupportedName is the name returned by the unsupported platform stub.
const unsupportedName = "unsupported"

// unsupportedPlatform is returned on operating systems without any kernel
// capability primitive. Every operation is a successful no-op so callers can
// degrade to allow-list-only enforcement without branching on OS identity.
type unsupportedPlatform struct{}

func (p *unsupportedPlatform) Name() string { return unsupportedName }

func (p *unsupportedPlatform) Available() bool { return false }

func (p *unsupportedPlatform) VeilPath(_, _ string) error { return nil }

func (p *unsupportedPlatform) SealPaths() error { return nil }

func (p *unsupportedPlatform) RestrictSyscalls(_, _ string) error { return nil }

func (p *unsupportedPlatform) Capabilities() Capabilities {
	return Capabilities{}
}

// NewUnsupportedPlatform returns a Platform that always reports as
// unavailable and accepts every call as a no-op. Useful for testing.
func NewUnsupportedPlatform() Platform {
	return &unsupportedPlatform{}
}
