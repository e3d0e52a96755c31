package queued

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/properties"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/Azure/azure-storage-queue-go/azqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(s string) *resources.URI {
	u, err := resources.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

var queue = mustParse("https://account.queue.core.windows.net/readyforaggregation?sig=abc")

type fakeQueue struct {
	messages []string
	err      error
}

func (f *fakeQueue) Put(_ context.Context, _ *resources.URI, message string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func ingestion() properties.Ingestion {
	return properties.Ingestion{
		BlobPath:             "https://account.blob.core.windows.net/container/db__table__id__f.csv.gz?sig=abc",
		RawDataSize:          42,
		DatabaseName:         "db",
		TableName:            "table",
		AuthorizationContext: "token",
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	id, err := NewPublisher(q).Publish(context.Background(), queue, ingestion())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.Len(t, q.messages, 1)
	got, err := properties.UnmarshalJSONString(q.messages[0])
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "db", got.DatabaseName)
	assert.Equal(t, "table", got.TableName)
	assert.EqualValues(t, 42, got.RawDataSize)
	assert.Equal(t, "token", got.Additional.AuthContext)
}

func TestPublishKeepsGivenID(t *testing.T) {
	t.Parallel()

	ing := ingestion()
	ing.ID = uuid.MustParse("9854e507-5060-4fed-be22-e909780245fb")

	id, err := NewPublisher(&fakeQueue{}).Publish(context.Background(), queue, ing)
	require.NoError(t, err)
	assert.Equal(t, ing.ID, id)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc     string
		ing      func() properties.Ingestion
		queueErr error
		wantKind errors.Kind
	}{
		{
			desc:     "queue rejects the message",
			ing:      ingestion,
			queueErr: fmt.Errorf("403 AuthenticationFailed"),
			wantKind: errors.KPublishFailed,
		},
		{
			desc: "descriptor is incomplete",
			ing: func() properties.Ingestion {
				i := ingestion()
				i.AuthorizationContext = ""
				return i
			},
			wantKind: errors.KInternal,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			q := &fakeQueue{err: test.queueErr}
			_, err := NewPublisher(q).Publish(context.Background(), queue, test.ing())
			require.Error(t, err)
			assert.Equal(t, test.wantKind, errors.KindOf(err))
			assert.Empty(t, q.messages)
		})
	}
}

func TestAzureQueue(t *testing.T) {
	t.Parallel()

	var gotURL url.URL
	var gotMessage string

	q := NewAzureQueue()
	q.enqueue = func(_ context.Context, to azqueue.MessagesURL, message string) error {
		gotURL = to.URL()
		gotMessage = message
		return nil
	}

	require.NoError(t, q.Put(context.Background(), queue, "bWVzc2FnZQ=="))
	assert.Equal(t, "account.queue.core.windows.net", gotURL.Host)
	assert.Equal(t, "/readyforaggregation/messages", gotURL.Path)
	assert.Equal(t, "abc", gotURL.Query().Get("sig"))
	assert.Equal(t, "bWVzc2FnZQ==", gotMessage)

	require.NoError(t, q.Put(context.Background(), queue, "again"))
	assert.Len(t, q.urls, 1)
}

func TestAzureQueueRotatedSAS(t *testing.T) {
	t.Parallel()

	var got []url.URL
	q := NewAzureQueue()
	q.enqueue = func(_ context.Context, to azqueue.MessagesURL, _ string) error {
		got = append(got, to.URL())
		return nil
	}

	for i := 0; i < 100; i++ {
		rotated := mustParse(fmt.Sprintf("https://account.queue.core.windows.net/readyforaggregation?sig=rotated%d", i))
		require.NoError(t, q.Put(context.Background(), rotated, "m"))
	}
	assert.Len(t, q.urls, 1)
	require.Len(t, got, 100)
	assert.Equal(t, "rotated99", got[99].Query().Get("sig"))

	second := mustParse("https://account.queue.core.windows.net/secondqueue?sig=abc")
	require.NoError(t, q.Put(context.Background(), second, "m"))
	assert.Len(t, q.urls, 2)
}
