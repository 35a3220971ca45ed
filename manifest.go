package appcage

// Manifest is the externally validated capability declaration attached to an
// application. appcage consumes it read-only and never re-derives or
// validates the structure; parsing and validation happen upstream.
type Manifest struct {
	// Present distinguishes "no manifest" (permissive mode) from "manifest
	// with zero entries" (deny-all).
	Present bool

	// FSRead lists paths the app may read.
	FSRead []string

	// FSWrite lists paths the app may read, write, and create.
	FSWrite []string

	// Hosts lists hostnames the app may contact over HTTP(S).
	Hosts []string
}
