package azkustoingest

import (
	"fmt"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Stage is the step of an ingestion an item reached.
type Stage int

const (
	// StageResolve is getting the staging containers, queues and authorization context.
	StageResolve Stage = iota
	// StageUpload is writing the item to blob storage.
	StageUpload
	// StagePublish is putting the ingestion message for the item on a queue.
	StagePublish
	// StageDone means the message was queued. The service ingests it asynchronously.
	StageDone
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageResolve:
		return "Resolve"
	case StageUpload:
		return "Upload"
	case StagePublish:
		return "Publish"
	case StageDone:
		return "Done"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ItemResult is the outcome for one file, data frame or blob.
type ItemResult struct {
	// Source is the source that was staged. It is nil for blobs ingested with FromBlobs.
	Source UploadSource
	// Blob is the blob the item was staged to. Its URL is empty if the upload did not happen.
	Blob BlobDescriptor
	// MessageID is the Id of the queued ingestion message, uuid.Nil until published.
	MessageID uuid.UUID
	// Stage is the last stage attempted. With a nil Err it is StageDone.
	Stage Stage
	// Err is why Stage failed.
	Err error
}

// Staged reports if the item's data is in blob storage, whether or not its message was queued.
// A failed item that is Staged has a blob without a queued message.
func (i ItemResult) Staged() bool {
	return i.Blob.URL != "" && (i.Stage == StagePublish || i.Stage == StageDone)
}

// Result holds one ItemResult per input, in input order.
type Result struct {
	Items []ItemResult
}

// Failed returns the items that did not reach StageDone.
func (r *Result) Failed() []ItemResult {
	return lo.Filter(r.Items, func(i ItemResult, _ int) bool { return i.Err != nil })
}

// Succeeded returns the items whose message was queued.
func (r *Result) Succeeded() []ItemResult {
	return lo.Filter(r.Items, func(i ItemResult, _ int) bool { return i.Err == nil })
}

// Err returns nil if every item succeeded, the item's error if one failed, and an *errors.CombinedError otherwise.
func (r *Result) Err() error {
	return errors.CombineErrors(lo.Map(r.Items, func(i ItemResult, _ int) error { return i.Err })...)
}
