package httpcap

// Header is a single response or request header. Order is preserved.
type Header struct {
	Name  string
	Value string
}

// Response is a completed HTTP exchange result. It is only ever returned
// fully populated: partial parser state never reaches the caller.
type Response struct {
	// Status is the integer status code from the status line.
	Status int

	// Headers holds the response headers in wire order, capped at the
	// configured maximum count.
	Headers []Header

	// Body is the exact-length response body. No trailing capacity beyond
	// the reported length is retained.
	Body []byte
}

// HeaderValue returns the value of the first header with the given name,
// compared case-insensitively, and whether it was present.
func (r *Response) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// equalFold is an ASCII-only case-insensitive comparison; header names are
// ASCII by construction.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
