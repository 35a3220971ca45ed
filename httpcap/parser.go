package httpcap

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhangyunhao116/appcage/memlimit"
)

// Parser is the pluggable streaming response parser. Implementations consume
// input incrementally and report completion without requiring the whole
// message in memory at once, so the wire-format engine can be swapped
// without touching client logic.
type Parser interface {
	// Parse consumes a chunk of response bytes. It returns the number of
	// bytes consumed, whether the message is complete, and a parse error.
	// After an error every further call fails.
	Parse(p []byte) (n int, done bool, err error)

	// Finish signals end of input (the peer closed the connection). It
	// returns whether the message could be completed; a close before the
	// status line was observed is an error.
	Finish() (done bool, err error)

	// Take transfers ownership of the completed response to the caller and
	// releases the parser's scratch state. It fails until the message is
	// complete.
	Take() (*Response, error)

	// Reset discards all accumulated state so the parser can be reused.
	Reset()

	// Close releases scratch buffers and accounting. The parser must not
	// be used afterwards.
	Close()
}

// WireParserConfig configures the reference HTTP/1.x parser.
type WireParserConfig struct {
	// MaxHeaderCount caps the number of accepted headers. Defaults to 64.
	MaxHeaderCount int

	// MaxBodySize caps the accepted body in bytes. Defaults to 8 MiB.
	MaxBodySize int

	// Tracker, when non-nil, accounts the parser's accumulated bytes.
	Tracker *memlimit.Tracker
}

const (
	defaultMaxHeaderCount = 64
	defaultMaxBodySize    = 8 << 20

	// maxHeaderSectionBytes caps the bytes buffered while waiting for the
	// end of the status line or a header line. Without it a peer could
	// stream an endless line and the count and body caps would never
	// engage.
	maxHeaderSectionBytes = 64 << 10
)

// wireParser states.
const (
	stateStatus = iota
	stateHeaders
	stateBody
	stateDone
	stateFailed
)

// wireParser is the reference Parser: a hand-rolled incremental HTTP/1.x
// response parser. Header pairs are accumulated incrementally (a pending
// pair is flushed when the next name begins, so folded continuation lines
// extend the pending value), and header count and body size are enforced as
// hard errors rather than silent truncation. On completion the body and
// header list are copied at exact size before ownership transfers to the
// Response.
type wireParser struct {
	cfg WireParserConfig

	state   int
	buf     []byte // unconsumed partial line bytes
	status  int
	headers []Header
	pending *Header // header pair not yet flushed (may still grow by folding)

	// body accumulation
	body       []byte
	contentLen int // -1 when absent: body runs until connection close

	reserved int64 // bytes accounted against cfg.Tracker
	err      error
}

// NewWireParser returns the reference streaming parser.
func NewWireParser(cfg WireParserConfig) Parser {
	if cfg.MaxHeaderCount <= 0 {
		cfg.MaxHeaderCount = defaultMaxHeaderCount
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &wireParser{cfg: cfg, contentLen: -1}
}

func (w *wireParser) Parse(p []byte) (int, bool, error) {
	if w.err != nil {
		return 0, false, w.err
	}
	if w.state == stateDone {
		return 0, true, nil
	}
	if err := w.grow(len(p)); err != nil {
		return 0, false, w.fail(err)
	}
	w.buf = append(w.buf, p...)

	for w.state == stateStatus || w.state == stateHeaders {
		line, rest, ok := cutLine(w.buf)
		if !ok {
			if len(w.buf) > maxHeaderSectionBytes {
				return 0, false, w.fail(fmt.Errorf("%w: header section exceeds %d bytes",
					ErrResponseTooLarge, maxHeaderSectionBytes))
			}
			return len(p), false, nil
		}
		w.buf = rest
		var err error
		if w.state == stateStatus {
			err = w.parseStatusLine(line)
		} else {
			err = w.parseHeaderLine(line)
		}
		if err != nil {
			return 0, false, w.fail(err)
		}
	}

	if w.state == stateBody {
		if err := w.consumeBody(); err != nil {
			return 0, false, w.fail(err)
		}
	}
	return len(p), w.state == stateDone, nil
}

func (w *wireParser) Finish() (bool, error) {
	if w.err != nil {
		return false, w.err
	}
	switch w.state {
	case stateDone:
		return true, nil
	case stateBody:
		if w.contentLen >= 0 {
			// Close before the declared length arrived.
			return false, w.fail(fmt.Errorf("%w: connection closed mid-body", ErrParse))
		}
		// Close-delimited body: end of input completes the message.
		w.state = stateDone
		return true, nil
	case stateHeaders:
		return false, w.fail(fmt.Errorf("%w: connection closed mid-headers", ErrParse))
	default:
		return false, w.fail(fmt.Errorf("%w: connection closed before status line", ErrParse))
	}
}

func (w *wireParser) Take() (*Response, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.state != stateDone {
		return nil, fmt.Errorf("%w: message incomplete", ErrParse)
	}

	// Exact-size copies: the caller keeps no over-allocated capacity.
	resp := &Response{Status: w.status}
	if len(w.headers) > 0 {
		resp.Headers = make([]Header, len(w.headers))
		copy(resp.Headers, w.headers)
	}
	if len(w.body) > 0 {
		resp.Body = make([]byte, len(w.body))
		copy(resp.Body, w.body)
	}
	w.Reset()
	return resp, nil
}

func (w *wireParser) Reset() {
	w.release()
	*w = wireParser{cfg: w.cfg, contentLen: -1}
}

func (w *wireParser) Close() {
	w.release()
	w.err = fmt.Errorf("%w: parser closed", ErrParse)
	w.state = stateFailed
}

// fail latches an error: all further calls return it.
func (w *wireParser) fail(err error) error {
	w.state = stateFailed
	w.err = err
	w.release()
	return err
}

// grow accounts n additional scratch bytes against the tracker.
func (w *wireParser) grow(n int) error {
	if w.cfg.Tracker == nil || n <= 0 {
		return nil
	}
	if err := w.cfg.Tracker.Reserve(int64(n)); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseTooLarge, err)
	}
	w.reserved += int64(n)
	return nil
}

// release refunds all scratch accounting.
func (w *wireParser) release() {
	if w.cfg.Tracker != nil && w.reserved > 0 {
		w.cfg.Tracker.Release(w.reserved)
	}
	w.reserved = 0
	w.buf = nil
	w.body = nil
	w.headers = nil
	w.pending = nil
}

func (w *wireParser) parseStatusLine(line []byte) error {
	s := string(line)
	if !strings.HasPrefix(s, "HTTP/1.") {
		return fmt.Errorf("%w: bad status line %q", ErrParse, s)
	}
	fields := strings.SplitN(s, " ", 3)
	if len(fields) < 2 || len(fields[1]) != 3 {
		return fmt.Errorf("%w: bad status line %q", ErrParse, s)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 {
		return fmt.Errorf("%w: bad status code %q", ErrParse, fields[1])
	}
	w.status = code
	w.state = stateHeaders
	return nil
}

func (w *wireParser) parseHeaderLine(line []byte) error {
	if len(line) == 0 {
		// Blank line: headers are over.
		w.flushPending()
		return w.beginBody()
	}
	if line[0] == ' ' || line[0] == '\t' {
		// Folded continuation: extend the pending value.
		if w.pending == nil {
			return fmt.Errorf("%w: continuation without header", ErrParse)
		}
		w.pending.Value += " " + string(bytes.TrimLeft(line, " \t"))
		return nil
	}

	// A new name begins: flush the previous pair first.
	w.flushPending()
	if len(w.headers) >= w.cfg.MaxHeaderCount {
		return fmt.Errorf("%w: more than %d headers", ErrResponseTooLarge, w.cfg.MaxHeaderCount)
	}
	name, value, ok := bytes.Cut(line, []byte{':'})
	if !ok || len(name) == 0 {
		return fmt.Errorf("%w: bad header line %q", ErrParse, line)
	}
	w.pending = &Header{
		Name:  string(name),
		Value: string(bytes.TrimSpace(value)),
	}
	return nil
}

func (w *wireParser) flushPending() {
	if w.pending != nil {
		w.headers = append(w.headers, *w.pending)
		w.pending = nil
	}
}

// beginBody decides how the body is delimited once headers are complete.
func (w *wireParser) beginBody() error {
	if w.status == 204 || w.status == 304 || w.status/100 == 1 {
		w.state = stateDone
		return nil
	}
	for _, h := range w.headers {
		if !equalFold(h.Name, "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(h.Value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: bad content-length %q", ErrParse, h.Value)
		}
		// Reject up front instead of truncating later.
		if n > w.cfg.MaxBodySize {
			return fmt.Errorf("%w: declared body of %d bytes exceeds cap %d",
				ErrResponseTooLarge, n, w.cfg.MaxBodySize)
		}
		w.contentLen = n
	}
	w.state = stateBody
	return w.consumeBody()
}

// consumeBody moves buffered bytes into the body accumulator.
func (w *wireParser) consumeBody() error {
	if len(w.buf) > 0 {
		if len(w.body)+len(w.buf) > w.cfg.MaxBodySize {
			return fmt.Errorf("%w: body exceeds cap %d", ErrResponseTooLarge, w.cfg.MaxBodySize)
		}
		w.body = append(w.body, w.buf...)
		w.buf = w.buf[:0]
	}
	if w.contentLen >= 0 {
		if len(w.body) > w.contentLen {
			return fmt.Errorf("%w: %d bytes past declared length", ErrParse, len(w.body)-w.contentLen)
		}
		if len(w.body) == w.contentLen {
			w.state = stateDone
		}
	}
	return nil
}

// cutLine splits buf at the first line feed, trimming an optional preceding
// carriage return. ok is false when no complete line is buffered yet.
func cutLine(buf []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, buf, false
	}
	line = buf[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, buf[i+1:], true
}
