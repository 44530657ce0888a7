package sse

import (
	"errors"
	"io"
)

const defaultReadSize = 32 * 1024

// TeeReader reads frames from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Each chunk read from the source is written to the destination before the
// next read, so a slow destination slows the source and at most one read
// buffer is held in memory at a time.
type TeeReader struct {
	src    io.Reader
	dest   io.Writer
	parser *Parser
	buf    []byte

	pending []Frame
	err     error
	n       int64
}

// NewTeeReader returns a TeeReader that parses frames from src and writes all
// raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer, opts ...ParserOption) *TeeReader {
	return &TeeReader{
		src:    src,
		dest:   dest,
		parser: NewParser(opts...),
		buf:    make([]byte, defaultReadSize),
	}
}

// NewReader returns a TeeReader without a destination.
func NewReader(src io.Reader, opts ...ParserOption) *TeeReader {
	return NewTeeReader(src, nil, opts...)
}

// Next returns the next complete frame. It blocks until one is available.
// Next returns nil, nil when the source is exhausted; an incomplete trailing
// record is never returned.
func (r *TeeReader) Next() (*Frame, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return nil, nil
			}
			return nil, r.err
		}
		r.fill()
	}

	f := r.pending[0]
	r.pending = r.pending[1:]
	return &f, nil
}

// BytesRead reports how many bytes have been consumed from the source.
func (r *TeeReader) BytesRead() int64 {
	return r.n
}

func (r *TeeReader) fill() {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		r.n += int64(n)
		if r.dest != nil {
			if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
				r.err = werr
				return
			}
		}
		r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
	}
	if err != nil {
		r.err = err
	}
}
