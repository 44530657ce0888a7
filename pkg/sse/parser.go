package sse

import (
	"bytes"
	"strings"
)

// ParserOption configures a Parser created with NewParser.
type ParserOption func(*Parser)

// WithMaxRecordSize bounds the number of bytes a single record may occupy
// before its terminating blank line arrives. A record that outgrows the limit
// is discarded through its delimiter, exactly like any other malformed record.
// Zero (the default) means unbounded.
func WithMaxRecordSize(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxRecord = n
		}
	}
}

// Parser splits a byte stream into Frames. It holds only the bytes of the
// record currently being assembled.
//
// A record is emitted only if it carries a non-empty "event:" name and at
// least one "data:" line. Anything else is dropped silently: callers observe
// fewer frames, never an error.
//
// Parser is not safe for concurrent use.
type Parser struct {
	// line holds the bytes of the current, not yet newline-terminated line.
	line []byte

	event    string
	data     strings.Builder
	id       string
	hasData  bool
	recBytes int

	maxRecord  int
	discarding bool
}

// NewParser returns an empty Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed appends chunk to the parser buffer and returns every frame completed
// by it, in arrival order.
func (p *Parser) Feed(chunk []byte) []Frame {
	var frames []Frame

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			p.appendPartial(chunk)
			break
		}

		p.appendPartial(chunk[:idx])
		chunk = chunk[idx+1:]

		line := bytes.TrimSuffix(p.line, []byte{'\r'})
		if f, ok := p.endLine(line); ok {
			frames = append(frames, f)
		}
		p.line = p.line[:0]
	}

	return frames
}

// Buffered reports how many bytes are held for the record in progress.
func (p *Parser) Buffered() int {
	return p.recBytes + len(p.line)
}

// Reset discards any partially assembled record.
func (p *Parser) Reset() {
	p.line = p.line[:0]
	p.discarding = false
	p.resetRecord()
}

func (p *Parser) appendPartial(b []byte) {
	if p.discarding {
		// Only blankness of the line matters while skipping a record, and
		// two bytes are enough to tell "\r" apart from "\r...".
		for i := 0; i < len(b) && len(p.line) < 2; i++ {
			p.line = append(p.line, b[i])
		}
		return
	}

	p.line = append(p.line, b...)
	if p.maxRecord > 0 && p.recBytes+len(p.line) > p.maxRecord {
		p.discarding = true
		p.resetRecord()
		if len(p.line) > 2 {
			p.line = p.line[:2]
		}
	}
}

// endLine consumes one complete line. A blank line terminates the record.
func (p *Parser) endLine(line []byte) (Frame, bool) {
	if len(line) == 0 {
		if p.discarding {
			p.discarding = false
			return Frame{}, false
		}
		return p.flush()
	}

	if p.discarding || line[0] == ':' {
		return Frame{}, false
	}

	p.recBytes += len(line) + 1
	if p.maxRecord > 0 && p.recBytes > p.maxRecord {
		p.discarding = true
		p.resetRecord()
		return Frame{}, false
	}

	p.parseField(string(line))
	return Frame{}, false
}

// parseField accumulates "field:value" into the current record. A single
// leading space after the colon is stripped. Unknown fields are ignored.
func (p *Parser) parseField(line string) {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		p.event = value
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "id":
		p.id = value
	}
}

func (p *Parser) flush() (Frame, bool) {
	defer p.resetRecord()

	if p.event == "" || !p.hasData {
		return Frame{}, false
	}

	return Frame{Event: p.event, Data: p.data.String(), ID: p.id}, true
}

func (p *Parser) resetRecord() {
	p.event = ""
	p.id = ""
	p.data.Reset()
	p.hasData = false
	p.recBytes = 0
}
