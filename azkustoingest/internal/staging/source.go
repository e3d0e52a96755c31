// Package staging moves local data into blob storage so the ingestion service can read it from there.
package staging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/Azure/azure-kusto-ingest-go/errors"
)

const defaultStreamName = "stream"

// Source is where the data of one upload comes from. The only implementations are PathSource, StreamSource and
// BufferSource.
type Source interface {
	// Name is the file or stream name the blob name is derived from.
	Name() string
	open() (io.ReadCloser, error)
	validate() error
}

// PathSource reads a local file.
type PathSource struct {
	Path string
}

// Name implements Source.
func (s PathSource) Name() string {
	return filepath.Base(s.Path)
}

func (s PathSource) validate() error {
	if s.Path == "" {
		return errors.ES(errors.OpFileIngest, errors.KInvalidInput, "a file source must have a path").SetNoRetry()
	}
	return nil
}

func (s PathSource) open() (io.ReadCloser, error) {
	stat, err := os.Stat(s.Path)
	if err != nil {
		return nil, errors.ES(errors.OpFileIngest, errors.KInvalidInput, "could not Stat the file(%s): %s", s.Path, err).SetNoRetry()
	}
	if stat.IsDir() {
		return nil, errors.ES(errors.OpFileIngest, errors.KInvalidInput, "path(%s) is a local directory and not a valid file", s.Path).SetNoRetry()
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.ES(errors.OpFileIngest, errors.KInvalidInput, "problem retrieving source file %q: %s", s.Path, err).SetNoRetry()
	}
	return f, nil
}

// StreamSource reads from an io.Reader. It can be uploaded once, the reader is not rewound.
type StreamSource struct {
	Reader io.Reader
	// StreamName is used in the blob name. It defaults to "stream".
	StreamName string
}

// Name implements Source.
func (s StreamSource) Name() string {
	if s.StreamName == "" {
		return defaultStreamName
	}
	return s.StreamName
}

func (s StreamSource) validate() error {
	if s.Reader == nil {
		return errors.ES(errors.OpFileIngest, errors.KInvalidInput, "a stream source must have a reader").SetNoRetry()
	}
	return nil
}

func (s StreamSource) open() (io.ReadCloser, error) {
	return io.NopCloser(s.Reader), nil
}

// BufferSource reads from memory.
type BufferSource struct {
	Data []byte
	// StreamName is used in the blob name. It defaults to "stream".
	StreamName string
}

// Name implements Source.
func (s BufferSource) Name() string {
	if s.StreamName == "" {
		return defaultStreamName
	}
	return s.StreamName
}

func (s BufferSource) validate() error {
	return nil
}

func (s BufferSource) open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
