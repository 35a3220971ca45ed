package httpcap

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsedURL is the result of parsing a request URL. It is derived once per
// request and never persisted.
type ParsedURL struct {
	// Secure is true for https URLs.
	Secure bool

	// Host is the hostname or literal address, without brackets.
	Host string

	// Port is the explicit port, or the scheme default (80/443).
	Port int

	// Path is the request target, "/" when the URL has none.
	Path string
}

// ParseURL parses rawurl, accepting only http and https schemes. The host
// may use the bracketed literal-address form; the port defaults to 80 or
// 443 by scheme and the path to "/". Any carriage-return or line-feed byte
// in host or path is rejected as a request-splitting defense. Anything
// malformed fails closed with ErrBadURL.
func ParseURL(rawurl string) (ParsedURL, error) {
	var u ParsedURL

	scheme, rest, ok := strings.Cut(rawurl, "://")
	if !ok {
		return u, fmt.Errorf("%w: missing scheme", ErrBadURL)
	}
	switch strings.ToLower(scheme) {
	case "http":
		u.Secure = false
		u.Port = 80
	case "https":
		u.Secure = true
		u.Port = 443
	default:
		return u, fmt.Errorf("%w: unsupported scheme %q", ErrBadURL, scheme)
	}

	authority := rest
	u.Path = "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority = rest[:i]
		u.Path = rest[i:]
	}
	if authority == "" {
		return u, fmt.Errorf("%w: empty host", ErrBadURL)
	}

	var portStr string
	if authority[0] == '[' {
		// Bracketed literal address, e.g. [::1]:8080.
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return u, fmt.Errorf("%w: unterminated address literal", ErrBadURL)
		}
		u.Host = authority[1:end]
		switch {
		case end == len(authority)-1:
			// no port
		case authority[end+1] == ':':
			portStr = authority[end+2:]
		default:
			return u, fmt.Errorf("%w: junk after address literal", ErrBadURL)
		}
	} else {
		u.Host = authority
		if i := strings.IndexByte(authority, ':'); i >= 0 {
			u.Host = authority[:i]
			portStr = authority[i+1:]
		}
	}
	if u.Host == "" {
		return u, fmt.Errorf("%w: empty host", ErrBadURL)
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return u, fmt.Errorf("%w: bad port %q", ErrBadURL, portStr)
		}
		u.Port = port
	}

	if strings.ContainsAny(u.Host, "\r\n") || strings.ContainsAny(u.Path, "\r\n") {
		return u, fmt.Errorf("%w: control bytes in host or path", ErrBadURL)
	}
	return u, nil
}
