// Package httpcap is the hardened outbound HTTP client capability: the sole
// network-egress path available to application scripts. It enforces a host
// allow-list, defends against request splitting, bounds every network step
// with a single timeout budget, and parses responses through a pluggable
// streaming parser.
package httpcap

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/zhangyunhao116/appcage/memlimit"
)

// Default limits for the client.
const (
	defaultTimeout  = 30 * time.Second
	maxRequestBytes = 64 << 10
	readChunkSize   = 8 << 10
)

// Client performs outbound HTTP requests for one capability holder. Each
// request owns its connection, TLS session, and parser exclusively; the
// client itself carries only configuration and may be reused sequentially.
type Client struct {
	// Hosts is the host allow-list: case-insensitive, exact-match only.
	// An empty list denies every request.
	Hosts []string

	// Timeout bounds the whole exchange (connect, handshake, send,
	// receive). Defaults to 30s if zero.
	Timeout time.Duration

	// TLSConfig enables https. When nil, https requests fail closed before
	// any network I/O.
	TLSConfig *tls.Config

	// MaxHeaderCount and MaxBodySize bound the parsed response. Zero
	// selects the parser defaults.
	MaxHeaderCount int
	MaxBodySize    int

	// Tracker, when non-nil, accounts response accumulation bytes.
	Tracker *memlimit.Tracker

	// Logger is the structured logger. If nil, log output is discarded.
	Logger *slog.Logger

	// NewParser supplies the streaming parser for each request. If nil,
	// the reference wire parser is used.
	NewParser func() Parser

	// dialFn establishes the TCP connection. Overridden in tests.
	dialFn func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Get performs a GET request with no extra headers and no body. It is a
// convenience wrapper over Do.
func (c *Client) Get(rawurl string) (*Response, error) {
	return c.Do("GET", rawurl, nil, nil)
}

// Do performs a single HTTP exchange: parse the URL, check the host
// allow-list, connect, optionally perform the TLS handshake, send the
// serialized request, and feed received bytes to the streaming parser until
// the message completes. On any failure everything opened so far is
// released and no partial response escapes.
func (c *Client) Do(method, rawurl string, headers []Header, body []byte) (*Response, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	u, err := ParseURL(rawurl)
	if err != nil {
		return nil, err
	}
	if !c.hostAllowed(u.Host) {
		logger.Warn("host not on allow-list", "host", u.Host)
		return nil, ErrHostNotAllowed
	}
	if u.Secure && c.TLSConfig == nil {
		return nil, ErrTLSRequired
	}

	// Serialize (and validate) before any network I/O.
	req, err := buildRequest(method, u, headers, body)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	deadline := time.Now().Add(timeout)

	dial := c.dialFn
	if dial == nil {
		dial = net.DialTimeout
	}
	conn, err := dial("tcp", net.JoinHostPort(u.Host, strconv.Itoa(u.Port)), timeout)
	if err != nil {
		return nil, wrapNetErr("connect", err)
	}

	rw := net.Conn(conn)
	if u.Secure {
		tlsConn := tls.Client(conn, c.tlsConfigFor(u.Host))
		_ = tlsConn.SetDeadline(deadline)
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			return nil, wrapNetErr("tls handshake", err)
		}
		rw = tlsConn
	}
	_ = rw.SetDeadline(deadline)

	if _, err := rw.Write(req); err != nil {
		_ = rw.Close()
		return nil, wrapNetErr("send", err)
	}

	resp, err := c.receive(rw)
	_ = rw.Close()
	if err != nil {
		logger.Warn("request failed", "host", u.Host, "error", err)
		return nil, err
	}
	logger.Debug("request complete", "host", u.Host, "status", resp.Status,
		"body_bytes", len(resp.Body))
	return resp, nil
}

// receive reads from the connection, feeding the parser until it reports
// completion, an error occurs, or the peer closes. The parser is always
// closed before returning; a completed response has already been taken out
// of it by then.
func (c *Client) receive(rw net.Conn) (*Response, error) {
	parser := c.newParser()
	defer parser.Close()

	buf := make([]byte, readChunkSize)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if _, done, perr := parser.Parse(buf[:n]); perr != nil {
				return nil, perr
			} else if done {
				return parser.Take()
			}
		}
		if err == io.EOF {
			if _, ferr := parser.Finish(); ferr != nil {
				return nil, ferr
			}
			return parser.Take()
		}
		if err != nil {
			return nil, wrapNetErr("receive", err)
		}
	}
}

func (c *Client) newParser() Parser {
	if c.NewParser != nil {
		return c.NewParser()
	}
	return NewWireParser(WireParserConfig{
		MaxHeaderCount: c.MaxHeaderCount,
		MaxBodySize:    c.MaxBodySize,
		Tracker:        c.Tracker,
	})
}

// hostAllowed reports whether host matches an allow-list entry exactly,
// case-insensitively. No wildcard or suffix matching is performed; an empty
// list denies every host. Unicode hostnames are folded to their ASCII
// lookup form before comparison; a name that cannot be folded is denied.
func (c *Client) hostAllowed(host string) bool {
	normalized, err := normalizeHost(host)
	if err != nil {
		return false
	}
	for _, allowed := range c.Hosts {
		n, err := normalizeHost(allowed)
		if err != nil {
			continue
		}
		if n == normalized {
			return true
		}
	}
	return false
}

// normalizeHost lowercases host and converts it to its ASCII (punycode)
// lookup form. Literal addresses pass through lowercased.
func normalizeHost(host string) (string, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if strings.ContainsAny(host, ":%") || net.ParseIP(host) != nil {
		// Literal address: no IDNA mapping.
		return host, nil
	}
	return idna.Lookup.ToASCII(host)
}

// tlsConfigFor clones the configured TLS settings with the server name set
// for this request.
func (c *Client) tlsConfigFor(host string) *tls.Config {
	cfg := c.TLSConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// buildRequest serializes the request line, Host header, caller headers, a
// Content-Length header when a body is present, and a connection-close
// directive into a bounded buffer. Carriage-return/line-feed bytes in the
// method or any header are rejected before anything is written; overflowing
// the bound fails closed rather than truncating.
func buildRequest(method string, u ParsedURL, headers []Header, body []byte) ([]byte, error) {
	if method == "" || strings.ContainsAny(method, "\r\n ") {
		return nil, fmt.Errorf("%w: bad method", ErrBadRequest)
	}
	for _, h := range headers {
		if h.Name == "" || strings.ContainsAny(h.Name, "\r\n:") {
			return nil, fmt.Errorf("%w: bad header name %q", ErrBadRequest, h.Name)
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			return nil, fmt.Errorf("%w: bad header value for %q", ErrBadRequest, h.Name)
		}
	}

	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]" // re-bracket literal IPv6 for the Host header
	}
	defaultPort := 80
	if u.Secure {
		defaultPort = 443
	}
	if u.Port != defaultPort {
		host += ":" + strconv.Itoa(u.Port)
	}

	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(u.Path)
	b.WriteString(" HTTP/1.1\r\nHost: ")
	b.WriteString(host)
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	if len(body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(body)))
		b.WriteString("\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	if b.Len()+len(body) > maxRequestBytes {
		return nil, ErrRequestTooLarge
	}
	b.Write(body)
	return b.Bytes(), nil
}

// wrapNetErr maps timeouts onto ErrTimeout and wraps everything else.
func wrapNetErr(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("httpcap: %s: %w", op, err)
}
