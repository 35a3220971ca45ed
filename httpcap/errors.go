package httpcap

import "errors"

// Sentinel errors returned by the httpcap package. All of them fail closed:
// when one is returned no network I/O has happened beyond what the error
// names, and no partial response is ever handed to the caller.
var (
	// ErrBadURL indicates the request URL is malformed or uses a scheme
	// other than http or https.
	ErrBadURL = errors.New("httpcap: malformed url")

	// ErrHostNotAllowed indicates the host is not on the allow-list.
	ErrHostNotAllowed = errors.New("httpcap: host not allowed")

	// ErrTLSRequired indicates an https URL was requested without a
	// configured TLS backend.
	ErrTLSRequired = errors.New("httpcap: https requires a tls configuration")

	// ErrBadRequest indicates the method or a header contains bytes that
	// would permit request splitting.
	ErrBadRequest = errors.New("httpcap: invalid request data")

	// ErrRequestTooLarge indicates the serialized request would overflow
	// the bounded request buffer.
	ErrRequestTooLarge = errors.New("httpcap: request exceeds buffer limit")

	// ErrTimeout indicates the overall request budget elapsed.
	ErrTimeout = errors.New("httpcap: request timed out")

	// ErrParse indicates the response bytes are not a valid HTTP message.
	ErrParse = errors.New("httpcap: malformed response")

	// ErrResponseTooLarge indicates the response exceeded the configured
	// header-count or body-size maximum. The response is reported as
	// failed, never silently truncated.
	ErrResponseTooLarge = errors.New("httpcap: response exceeds configured limits")
)
