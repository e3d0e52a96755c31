package azkustoingest

import (
	"io"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/queued"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/staging"
)

type (
	// UploadSource is the data of one file to stage. Build one with FromPath, FromStream or FromBuffer.
	UploadSource = staging.Source
	// BlobDescriptor is a blob holding data to ingest. URL must carry the SAS the service reads it with and Size is
	// its size in bytes, 0 if unknown.
	BlobDescriptor = staging.Blob

	// ContainerResource is a blob container data is staged into.
	ContainerResource = resources.URI
	// QueueResource is a queue ingestion messages are put on.
	QueueResource = resources.URI
	// ResourceSet is one answer of the resource authority.
	ResourceSet = resources.Snapshot

	// Authority hands out ingestion resources.
	Authority = resources.Authority
	// AuthorityFunc adapts a func to an Authority.
	AuthorityFunc = resources.AuthorityFunc
	// Mgmt runs management commands against the ingestion service.
	Mgmt = resources.Mgmt
	// Picker chooses one of several equivalent containers or queues.
	Picker = resources.Picker

	// BlobStore writes blobs. AzureBlobStore is used by NewAzure.
	BlobStore = staging.BlobStore
	// Queue puts messages on queues. AzureQueue is used by NewAzure.
	Queue = queued.Queue
)

// FromPath is a local file. A file that is not gzip or zip compressed, or in a binary format, is compressed
// on upload.
func FromPath(path string) UploadSource {
	return staging.PathSource{Path: path}
}

// FromStream reads r once. name is used in the blob name, "stream" if empty.
func FromStream(r io.Reader, name string) UploadSource {
	return staging.StreamSource{Reader: r, StreamName: name}
}

// FromBuffer uploads b. name is used in the blob name, "stream" if empty.
func FromBuffer(b []byte, name string) UploadSource {
	return staging.BufferSource{Data: b, StreamName: name}
}

// ParseResource parses the URL of a container or queue, with its SAS.
func ParseResource(uri string) (*ContainerResource, error) {
	return resources.Parse(uri)
}

// NewMgmtAuthority is an Authority asking the ingestion service through management commands.
func NewMgmtAuthority(client Mgmt) Authority {
	return resources.NewMgmtAuthority(client)
}

// NewUniformPicker picks uniformly at random. The same seed gives the same picks.
func NewUniformPicker(seed int64) Picker {
	return resources.NewUniformPicker(seed)
}

// NewRankedPicker prefers storage accounts whose recent uploads succeeded. Used for containers it is told about
// every upload.
func NewRankedPicker(seed int64) Picker {
	return resources.NewRankedPicker(seed)
}

// NewAzureBlobStore writes blobs to Azure Blob Storage.
func NewAzureBlobStore(applicationID string) BlobStore {
	return staging.NewAzureBlobStore(applicationID)
}

// NewAzureQueue puts messages on Azure Storage queues.
func NewAzureQueue() Queue {
	return queued.NewAzureQueue()
}
