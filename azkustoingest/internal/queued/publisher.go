// Package queued publishes ingestion descriptors to the queues the ingestion service reads from.
package queued

import (
	"context"
	"fmt"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/properties"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue puts one message on a queue.
type Queue interface {
	Put(ctx context.Context, queue *resources.URI, message string) error
}

// Publisher encodes descriptors and puts them on a Queue.
type Publisher struct {
	queue Queue
}

// NewPublisher is the constructor for Publisher.
func NewPublisher(queue Queue) *Publisher {
	return &Publisher{queue: queue}
}

// Publish encodes ing and puts it on queue. It returns the Id of the message, which is generated if ing has none.
func (p *Publisher) Publish(ctx context.Context, queue *resources.URI, ing properties.Ingestion) (uuid.UUID, error) {
	if ing.ID == uuid.Nil {
		ing.ID = uuid.New()
	}

	j, err := ing.MarshalJSONString()
	if err != nil {
		return uuid.Nil, errors.ES(errors.OpBlobIngest, errors.KInternal, "could not marshal the ingestion blob info: %s", err).SetNoRetry()
	}

	log := zerolog.Ctx(ctx).With().Str("queue", queue.ObjectName()).Str("account", queue.Account()).
		Str("messageId", ing.ID.String()).Logger()

	if err := p.queue.Put(ctx, queue, j); err != nil {
		if ctx.Err() != nil {
			return uuid.Nil, errors.E(errors.OpBlobIngest, errors.KTimeout, ctx.Err())
		}
		log.Error().Err(err).Msg("putting ingestion message on the queue failed")
		return uuid.Nil, errors.E(errors.OpBlobIngest, errors.KPublishFailed, fmt.Errorf("problem putting ingestion message on the queue: %w", err))
	}

	log.Debug().Str("blob", ing.BlobPath).Msg("published ingestion message")
	return ing.ID, nil
}
