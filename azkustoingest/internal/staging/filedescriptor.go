package staging

import (
	"io"
	"os"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
)

// FileDescriptor is one Source prepared for upload: its stream name, whether the client compresses it and, once
// uploaded, the number of bytes written to storage. Temporary files handed to it are removed by Close.
type FileDescriptor struct {
	src        Source
	format     ingestoptions.DataFormat
	compress   bool
	streamName string
	size       int64
	temp       []string
}

// DescriptorOption is an optional argument to NewFileDescriptor.
type DescriptorOption func(fd *FileDescriptor)

// DontCompress uploads the data as is.
func DontCompress() DescriptorOption {
	return func(fd *FileDescriptor) {
		fd.compress = false
	}
}

// OwnTempFile makes the descriptor responsible for deleting path on Close.
func OwnTempFile(path string) DescriptorOption {
	return func(fd *FileDescriptor) {
		fd.temp = append(fd.temp, path)
	}
}

// NewFileDescriptor prepares src for upload. format may be DFUnknown, in which case it is discovered from the
// source name. Sources that are already compressed or in a binary format are uploaded as is, everything else is
// gzip compressed and gets ".gz" appended to its stream name.
func NewFileDescriptor(src Source, format ingestoptions.DataFormat, opts ...DescriptorOption) (*FileDescriptor, error) {
	if src == nil {
		return nil, errors.ES(errors.OpFileIngest, errors.KInvalidInput, "source cannot be nil").SetNoRetry()
	}
	if err := src.validate(); err != nil {
		return nil, err
	}

	name := src.Name()
	if format == ingestoptions.DFUnknown {
		format = ingestoptions.DataFormatDiscovery(name)
	}

	fd := &FileDescriptor{
		src:      src,
		format:   format,
		compress: ingestoptions.CompressionDiscovery(name) == ingestoptions.CTNone && !format.IsBinary(),
	}
	for _, o := range opts {
		o(fd)
	}

	fd.streamName = name
	if fd.compress {
		fd.streamName += ".gz"
	}
	return fd, nil
}

// Source is the source this descriptor was built from.
func (fd *FileDescriptor) Source() Source {
	return fd.src
}

// Format is the data format given or discovered. It may be DFUnknown.
func (fd *FileDescriptor) Format() ingestoptions.DataFormat {
	return fd.format
}

// StreamName is the name used for the blob.
func (fd *FileDescriptor) StreamName() string {
	return fd.streamName
}

// Compressed reports if the client compresses the data on upload.
func (fd *FileDescriptor) Compressed() bool {
	return fd.compress
}

// Size is the number of bytes written to storage. It is 0 before the upload.
func (fd *FileDescriptor) Size() int64 {
	return fd.size
}

func (fd *FileDescriptor) open() (io.ReadCloser, error) {
	return fd.src.open()
}

// Close removes the temporary files the descriptor owns. It is safe to call more than once.
func (fd *FileDescriptor) Close() error {
	var errs []error
	for _, p := range fd.temp {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, errors.ES(errors.OpFileIngest, errors.KInternal, "could not remove temporary file(%s): %s", p, err))
		}
	}
	fd.temp = nil
	return errors.CombineErrors(errs...)
}
