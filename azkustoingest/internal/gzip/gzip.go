// Package gzip provides a streaming gzip compressor that can be read from. The bytes flowing in and out are
// counted so callers can report both the raw and the stored size of an upload.
package gzip

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
)

const chunkSize = 64 * 1024

// Streamer reads from an input and provides a gzip compressed stream of it as an io.Reader.
// Compression happens on demand inside Read, so nothing runs in the background.
// A Streamer is not safe for concurrent use.
type Streamer struct {
	input io.Reader
	zw    *gzip.Writer
	buf   bytes.Buffer
	chunk []byte

	inSize, outSize int64
	done            bool
	err             error
}

// New returns a new Streamer. Reset() must be called before use.
func New() *Streamer {
	s := &Streamer{chunk: make([]byte, chunkSize)}
	s.zw = gzip.NewWriter(&s.buf)
	return s
}

// Compress returns a Streamer already reading from r.
func Compress(r io.Reader) *Streamer {
	s := New()
	s.Reset(r)
	return s
}

// Reset points the Streamer at a new input and clears all counters.
func (s *Streamer) Reset(r io.Reader) {
	s.input = r
	s.buf.Reset()
	s.zw.Reset(&s.buf)
	s.inSize, s.outSize = 0, 0
	s.done = false
	s.err = nil
}

// Read implements io.Reader.
func (s *Streamer) Read(p []byte) (int, error) {
	if s.input == nil {
		return 0, errors.New("gzip.Streamer: Reset() must be called before Read()")
	}

	for s.buf.Len() == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if s.done {
			return 0, io.EOF
		}
		s.fill()
	}

	n, _ := s.buf.Read(p)
	s.outSize += int64(n)
	return n, nil
}

func (s *Streamer) fill() {
	n, err := s.input.Read(s.chunk)
	if n > 0 {
		s.inSize += int64(n)
		if _, werr := s.zw.Write(s.chunk[:n]); werr != nil {
			s.err = werr
			return
		}
	}

	switch {
	case err == io.EOF:
		if cerr := s.zw.Close(); cerr != nil {
			s.err = cerr
			return
		}
		s.done = true
	case err != nil:
		s.err = err
	}
}

// InputSize is the number of uncompressed bytes read from the input so far.
func (s *Streamer) InputSize() int64 {
	return s.inSize
}

// OutputSize is the number of compressed bytes handed out by Read so far.
func (s *Streamer) OutputSize() int64 {
	return s.outSize
}
