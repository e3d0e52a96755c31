package queued

import (
	"context"
	"sync"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-queue-go/azqueue"
)

// enqueue provides a type that mimics azqueue.MessagesURL.Enqueue to allow fakes for testing.
type enqueue func(ctx context.Context, to azqueue.MessagesURL, message string) error

func azEnqueue(ctx context.Context, to azqueue.MessagesURL, message string) error {
	// A zero visibility timeout makes the message visible at once, a zero ttl keeps the service default.
	_, err := to.Enqueue(ctx, message, 0, 0)
	return err
}

// AzureQueue is a Queue backed by Azure Queue Storage, authorized by the SAS of each queue.
type AzureQueue struct {
	pipeline pipeline.Pipeline
	enqueue  enqueue

	mu   sync.Mutex
	urls map[string]queueURL
}

// queueURL is the messages URL of one queue and the SAS it was built with.
type queueURL struct {
	sas string
	url azqueue.MessagesURL
}

// NewAzureQueue is the constructor for AzureQueue.
func NewAzureQueue() *AzureQueue {
	return &AzureQueue{
		pipeline: azqueue.NewPipeline(azqueue.NewAnonymousCredential(), azqueue.PipelineOptions{}),
		enqueue:  azEnqueue,
		urls:     map[string]queueURL{},
	}
}

// messagesURL returns the messages URL of queue, cached per account and queue name and rebuilt when the SAS rotates.
func (q *AzureQueue) messagesURL(queue *resources.URI) azqueue.MessagesURL {
	key := queue.Account() + "/" + queue.ObjectName()
	service := queue.ServiceURL()

	q.mu.Lock()
	defer q.mu.Unlock()

	if u, ok := q.urls[key]; ok && u.sas == service.RawQuery {
		return u.url
	}
	u := azqueue.NewServiceURL(*service, q.pipeline).NewQueueURL(queue.ObjectName()).NewMessagesURL()
	q.urls[key] = queueURL{sas: service.RawQuery, url: u}
	return u
}

// Put implements Queue.
func (q *AzureQueue) Put(ctx context.Context, queue *resources.URI, message string) error {
	return q.enqueue(ctx, q.messagesURL(queue), message)
}
