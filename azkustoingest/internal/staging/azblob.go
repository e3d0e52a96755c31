package staging

import (
	"context"
	"io"
	"sync"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const (
	// BlockSize is the block size used when uploading to blob storage.
	BlockSize = 8 * 1024 * 1024
	// Concurrency is the amount of blocks uploaded in parallel.
	Concurrency = 50
)

// uploadStream provides a type that mimics azblob.Client.UploadStream to allow fakes for testing.
type uploadStream func(ctx context.Context, client *azblob.Client, container, blob string, body io.Reader, o *azblob.UploadStreamOptions) error

func azUploadStream(ctx context.Context, client *azblob.Client, container, blob string, body io.Reader, o *azblob.UploadStreamOptions) error {
	_, err := client.UploadStream(ctx, container, blob, body, o)
	return err
}

// AzureBlobStore is a BlobStore writing to Azure Blob Storage with the SAS of each container.
type AzureBlobStore struct {
	opts   azblob.ClientOptions
	upload uploadStream

	mu      sync.Mutex
	clients map[string]containerClient
}

// containerClient is the client of one container and the SAS it was built with.
type containerClient struct {
	sas    string
	client *azblob.Client
}

// NewAzureBlobStore is the constructor for AzureBlobStore. applicationID is sent as telemetry, it may be empty.
func NewAzureBlobStore(applicationID string) *AzureBlobStore {
	return &AzureBlobStore{
		opts: azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Telemetry: policy.TelemetryOptions{ApplicationID: applicationID},
			},
		},
		upload:  azUploadStream,
		clients: map[string]containerClient{},
	}
}

// client returns the client for container. There is one client per account and container, it is
// rebuilt when the resource manager hands out a rotated SAS.
func (s *AzureBlobStore) client(container *resources.URI) (*azblob.Client, error) {
	key := container.Account() + "/" + container.ObjectName()
	service := container.ServiceURL()
	sas := service.RawQuery

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok && c.sas == sas {
		return c.client, nil
	}

	opts := s.opts
	c, err := azblob.NewClientWithNoCredential(service.String(), &opts)
	if err != nil {
		return nil, err
	}
	s.clients[key] = containerClient{sas: sas, client: c}
	return c, nil
}

// Upload implements BlobStore.
func (s *AzureBlobStore) Upload(ctx context.Context, container *resources.URI, blobName string, body io.Reader) (string, error) {
	client, err := s.client(container)
	if err != nil {
		return "", err
	}

	err = s.upload(ctx, client, container.ObjectName(), blobName, body, &azblob.UploadStreamOptions{
		BlockSize:   BlockSize,
		Concurrency: Concurrency,
	})
	if err != nil {
		return "", err
	}

	return container.ObjectURL(blobName), nil
}
