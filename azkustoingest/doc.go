/*
Package azkustoingest provides queued ingestion into Kusto.

Data is staged as blobs in storage containers the ingestion service hands out, then one message per blob is put
on one of its ingestion queues. The service reads the queues and ingests asynchronously: a nil error means the
data was queued, not that it was ingested.

For more information on Kusto Data Ingestion, please see: https://docs.microsoft.com/en-us/azure/kusto/management/data-ingestion/

# Create a client

A client needs an Authority that hands out containers, queues and the authorization context. NewMgmtAuthority
asks the ingestion service through its management commands:

	client, err := azkustoingest.NewAzure(azkustoingest.NewMgmtAuthority(mgmt))
	if err != nil {
		panic("add error handling")
	}
	defer client.Close()

Resources are cached for an hour and fetched at most once at a time, however many calls need them.

# Ingestion from local files

	props := azkustoingest.IngestionProperties{Database: "database", Table: "table"}

	res, err := client.FromFiles(ctx, []azkustoingest.UploadSource{azkustoingest.FromPath("/path/to/file.csv")}, props)

Files that are not compressed are gzip compressed on upload. Each file gets its own container unless
WithContainerSelection(SelectPerBatch) is used.

# Ingestion from blobs

Blobs that are already in storage only need a message:

	res, err := client.FromBlobs(ctx, []azkustoingest.BlobDescriptor{{URL: "https://account.blob.core.windows.net/c/file.csv?sas", Size: 1024}}, props)

# Ingestion from a data frame

	res, err := client.FromDataFrame(ctx, azkustoingest.Table{Rows: rows}, props)

The rows are written as gzip compressed CSV to a temporary file in the staging directory, which is removed
before the call returns.

# Errors

Each item of a call succeeds or fails on its own; nothing is rolled back. Result.Items tells which Stage every
item reached. An item that failed at StagePublish has its data in storage but no message was queued for it.
Errors are *errors.Error values whose Kind is one of KInvalidInput, KResourceUnavailable, KUploadFailed or
KPublishFailed.
*/
package azkustoingest
