package azkustoingest_test

import (
	"context"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/rs/zerolog"
)

func ExampleClient_FromFiles() {
	var mgmt azkustoingest.Mgmt // A management client of the ingestion endpoint, such as https://ingest-mycluster.kusto.windows.net.

	client, err := azkustoingest.NewAzure(
		azkustoingest.NewMgmtAuthority(mgmt),
		azkustoingest.WithAuthorityRetry(nil),
		azkustoingest.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		// Do something
	}
	// Be sure to close the client when you're done.
	defer client.Close()

	// Setup a maximum time for completion to be 10 minutes.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	props := azkustoingest.IngestionProperties{Database: "database", Table: "table"}
	files := []azkustoingest.UploadSource{
		azkustoingest.FromPath("/path/to/file.csv"),
		azkustoingest.FromPath("/path/to/other.csv.gz"),
	}

	res, err := client.FromFiles(ctx, files, props)
	if err != nil && res == nil {
		// Nothing was uploaded, the ingestion resources could not be resolved.
		return
	}

	for _, item := range res.Failed() {
		if item.Staged() {
			// The data is in storage but not queued, the blob can be queued again with FromBlobs.
			_, _ = client.FromBlobs(ctx, []azkustoingest.BlobDescriptor{item.Blob}, props)
			continue
		}
		if errors.Retry(item.Err) {
			// Handle retries
		}
	}
}
