package staging

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/gzip"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BlobStore writes a blob into a container. It returns the URL of the blob, including the SAS needed to read it.
type BlobStore interface {
	Upload(ctx context.Context, container *resources.URI, blobName string, body io.Reader) (string, error)
}

// Blob is a blob that holds data to ingest.
type Blob struct {
	// URL is the full URL of the blob, including its SAS.
	URL string
	// Size is the size of the blob in bytes. 0 means unknown.
	Size int64
}

// BlobName returns the name of a blob holding streamName for db and table. Every call returns a new name.
func BlobName(db, table, streamName string) string {
	return fmt.Sprintf("%s__%s__%s__%s", db, table, uuid.New(), streamName)
}

// Uploader stages FileDescriptors into blob storage.
type Uploader struct {
	store BlobStore
}

// NewUploader is the constructor for Uploader.
func NewUploader(store BlobStore) *Uploader {
	return &Uploader{store: store}
}

// Upload writes fd into container and records the number of bytes written on fd.
func (u *Uploader) Upload(ctx context.Context, fd *FileDescriptor, container *resources.URI, db, table string) (Blob, error) {
	rc, err := fd.open()
	if err != nil {
		return Blob{}, err
	}
	defer rc.Close()

	in := &countingReader{r: rc}
	var body io.Reader = in
	if fd.compress {
		body = gzip.Compress(in)
	}
	out := &countingReader{r: body}

	name := BlobName(db, table, fd.StreamName())
	log := zerolog.Ctx(ctx).With().Str("account", container.Account()).Str("container", container.ObjectName()).
		Str("blob", name).Logger()

	url, err := u.store.Upload(ctx, container, name, out)
	switch {
	case in.err != nil:
		return Blob{}, errors.ES(errors.OpFileIngest, errors.KInvalidInput, "could not read %s: %s", fd.src.Name(), in.err).SetNoRetry()
	case err != nil && ctx.Err() != nil:
		return Blob{}, errors.E(errors.OpFileIngest, errors.KTimeout, ctx.Err())
	case err != nil:
		log.Error().Err(err).Msg("upload to blob storage failed")
		return Blob{}, errors.E(errors.OpFileIngest, errors.KUploadFailed, fmt.Errorf("problem uploading to Blob Storage: %w", err))
	}

	fd.size = out.n
	log.Debug().Int64("rawSize", in.n).Int64("size", out.n).Msg("uploaded blob")

	return Blob{URL: url, Size: out.n}, nil
}

// countingReader counts the bytes read through it and keeps the first read error that was not io.EOF.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}
