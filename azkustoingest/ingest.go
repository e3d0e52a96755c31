package azkustoingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/queued"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/staging"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ApplicationID is sent as telemetry by the Azure clients NewAzure builds.
const ApplicationID = "azure-kusto-ingest-go"

// Client stages data in blob storage and queues it for ingestion.
// It is safe for concurrent use. Close it when done.
type Client struct {
	mgr       *resources.Manager
	uploader  *staging.Uploader
	publisher *queued.Publisher

	containerPicker Picker
	queuePicker     Picker
	selection       ContainerSelection
	concurrency     int
	stagingDir      string
	serializer      DataFrameSerializer
	log             zerolog.Logger
	metrics         *metrics
	now             func() time.Time

	resourceOpts []resources.Option
	retry        bool
	newBackOff   func() backoff.BackOff
}

// New is the constructor for Client. authority hands out the containers, queues and authorization context,
// store writes blobs and queue puts ingestion messages.
func New(authority Authority, store BlobStore, queue Queue, opts ...Option) (*Client, error) {
	switch {
	case authority == nil:
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "an Authority must be provided").SetNoRetry()
	case store == nil:
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "a BlobStore must be provided").SetNoRetry()
	case queue == nil:
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "a Queue must be provided").SetNoRetry()
	}

	picker := resources.NewDefaultPicker()
	c := &Client{
		uploader:        staging.NewUploader(store),
		publisher:       queued.NewPublisher(queue),
		containerPicker: picker,
		queuePicker:     picker,
		concurrency:     1,
		stagingDir:      os.TempDir(),
		serializer:      CSVSerializer{},
		log:             zerolog.Nop(),
		now:             time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	if c.concurrency < 1 {
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "concurrency must be at least 1, was %d", c.concurrency).SetNoRetry()
	}
	if c.containerPicker == nil || c.queuePicker == nil || c.serializer == nil {
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "picker and serializer options cannot be nil").SetNoRetry()
	}
	stat, err := os.Stat(c.stagingDir)
	if err != nil || !stat.IsDir() {
		return nil, errors.ES(errors.OpUnknown, errors.KInvalidInput, "staging directory(%s) is not a usable directory", c.stagingDir).SetNoRetry()
	}

	if c.retry {
		authority = resources.NewRetryingAuthority(authority, c.newBackOff, c.log)
	}

	mgrOpts := append([]resources.Option{
		resources.WithClock(c.now),
		resources.WithLogger(c.log),
		resources.WithFetchObserver(c.metrics.observeFetch),
	}, c.resourceOpts...)

	c.mgr, err = resources.New(authority, mgrOpts...)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// NewAzure is New with Azure Blob Storage and Azure Storage queues.
func NewAzure(authority Authority, opts ...Option) (*Client, error) {
	return New(authority, staging.NewAzureBlobStore(ApplicationID), queued.NewAzureQueue(), opts...)
}

// Close releases the cached resources. Calls made after Close fail.
func (c *Client) Close() error {
	c.mgr.Close()
	return nil
}

// resolved holds the resources of one call, read before anything is uploaded.
type resolved struct {
	containers  []*ContainerResource
	queues      []*QueueResource
	authContext string
	// container is set with SelectPerBatch.
	container *ContainerResource
}

func (c *Client) resolve(ctx context.Context, op errors.Op, withContainers bool) (*resolved, error) {
	r := &resolved{}
	var err error

	if withContainers {
		if r.containers, err = c.mgr.Containers(ctx); err != nil {
			return nil, errors.E(op, errors.KindOf(err), err)
		}
		if len(r.containers) == 0 {
			return nil, errors.ES(op, errors.KResourceUnavailable, "the resource authority returned no staging containers")
		}
		if c.selection == SelectPerBatch {
			if r.container, err = c.containerPicker.Pick(r.containers); err != nil {
				return nil, errors.E(op, errors.KindOf(err), err)
			}
		}
	}

	if r.queues, err = c.mgr.Queues(ctx); err != nil {
		return nil, errors.E(op, errors.KindOf(err), err)
	}
	if len(r.queues) == 0 {
		return nil, errors.ES(op, errors.KResourceUnavailable, "the resource authority returned no ingestion queues")
	}
	if r.authContext, err = c.mgr.AuthContext(ctx); err != nil {
		return nil, errors.E(op, errors.KindOf(err), err)
	}
	return r, nil
}

// FromFiles stages every file into a container and queues one ingestion message per file.
//
// Resources are resolved before anything is uploaded; if that fails, the error is returned with a nil Result.
// Otherwise the Result holds the outcome of every file and the error is Result.Err().
func (c *Client) FromFiles(ctx context.Context, files []UploadSource, props IngestionProperties) (*Result, error) {
	return c.fromFiles(ctx, errors.OpFileIngest, files, nil, props)
}

func (c *Client) fromFiles(ctx context.Context, op errors.Op, files []UploadSource, descOpts []staging.DescriptorOption, props IngestionProperties) (*Result, error) {
	ctx, log := c.logger(ctx, op, props)

	if err := props.Validate(); err != nil {
		return nil, errors.E(op, errors.KInvalidInput, err)
	}
	if len(files) == 0 {
		return nil, errors.ES(op, errors.KInvalidInput, "no files were given").SetNoRetry()
	}

	r, err := c.resolve(ctx, op, true)
	if err != nil {
		log.Error().Err(err).Msg("could not resolve ingestion resources")
		return nil, err
	}

	res := &Result{Items: make([]ItemResult, len(files))}
	c.each(ctx, len(files), func(ctx context.Context, i int) {
		res.Items[i] = c.ingestFile(ctx, op, files[i], descOpts, r, props)
		c.metrics.observeItem(op, res.Items[i])
	})

	err = res.Err()
	if err != nil {
		log.Warn().Int("failed", len(res.Failed())).Int("items", len(res.Items)).Msg("ingestion partially failed")
	}
	return res, err
}

func (c *Client) ingestFile(ctx context.Context, op errors.Op, src UploadSource, descOpts []staging.DescriptorOption, r *resolved, props IngestionProperties) ItemResult {
	item := ItemResult{Source: src, Stage: StageUpload}
	name := "<nil>"
	if src != nil {
		name = src.Name()
	}

	fd, err := staging.NewFileDescriptor(src, props.Format, descOpts...)
	if err != nil {
		item.Err = itemErr(op, name, err)
		return item
	}
	defer func() {
		if err := fd.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("could not clean up after upload")
		}
	}()

	container := r.container
	if container == nil {
		if container, err = c.containerPicker.Pick(r.containers); err != nil {
			item.Err = itemErr(op, name, err)
			return item
		}
	}

	blob, err := c.uploader.Upload(ctx, fd, container, props.Database, props.Table)
	// Only storage failures count against an account.
	if rep, ok := c.containerPicker.(resources.Reporter); ok && (err == nil || errors.Is(err, errors.KUploadFailed)) {
		rep.Report(container.Account(), err == nil)
	}
	if err != nil {
		item.Err = itemErr(op, name, err)
		return item
	}
	c.metrics.observeUpload(blob.Size)

	item.Blob = blob
	item.Stage = StagePublish
	item.MessageID, err = c.publish(ctx, r, blob, fd.Format(), props)
	if err != nil {
		item.Err = itemErr(op, name, err)
		return item
	}
	item.Stage = StageDone
	return item
}

// FromBlobs queues one ingestion message per blob. The blobs must already be readable by the service.
//
// Resources are resolved first; if that fails, the error is returned with a nil Result.
// Otherwise the Result holds the outcome of every blob and the error is Result.Err().
func (c *Client) FromBlobs(ctx context.Context, blobs []BlobDescriptor, props IngestionProperties) (*Result, error) {
	const op = errors.OpBlobIngest
	ctx, log := c.logger(ctx, op, props)

	if err := props.Validate(); err != nil {
		return nil, errors.E(op, errors.KInvalidInput, err)
	}
	if len(blobs) == 0 {
		return nil, errors.ES(op, errors.KInvalidInput, "no blobs were given").SetNoRetry()
	}

	r, err := c.resolve(ctx, op, false)
	if err != nil {
		log.Error().Err(err).Msg("could not resolve ingestion resources")
		return nil, err
	}

	res := &Result{Items: make([]ItemResult, len(blobs))}
	c.each(ctx, len(blobs), func(ctx context.Context, i int) {
		res.Items[i] = c.ingestBlob(ctx, op, blobs[i], r, props)
		c.metrics.observeItem(op, res.Items[i])
	})

	err = res.Err()
	if err != nil {
		log.Warn().Int("failed", len(res.Failed())).Int("items", len(res.Items)).Msg("ingestion partially failed")
	}
	return res, err
}

func (c *Client) ingestBlob(ctx context.Context, op errors.Op, blob BlobDescriptor, r *resolved, props IngestionProperties) ItemResult {
	item := ItemResult{Blob: blob, Stage: StagePublish}
	name := redact(blob.URL)

	if err := validateBlob(blob); err != nil {
		item.Err = itemErr(op, name, err)
		return item
	}

	id, err := c.publish(ctx, r, blob, props.blobFormat(blob.URL), props)
	if err != nil {
		item.Err = itemErr(op, name, err)
		return item
	}
	item.MessageID = id
	item.Stage = StageDone
	return item
}

func validateBlob(blob BlobDescriptor) error {
	if blob.URL == "" {
		return errors.ES(errors.OpBlobIngest, errors.KInvalidInput, "blob URL cannot be empty").SetNoRetry()
	}
	u, err := url.Parse(blob.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.ES(errors.OpBlobIngest, errors.KInvalidInput, "blob URL must be an https URL").SetNoRetry()
	}
	if blob.Size < 0 {
		return errors.ES(errors.OpBlobIngest, errors.KInvalidInput, "blob size cannot be negative").SetNoRetry()
	}
	return nil
}

// publish is the step every entry point ends with: one message, on a queue picked for this blob alone.
func (c *Client) publish(ctx context.Context, r *resolved, blob BlobDescriptor, format ingestoptions.DataFormat, props IngestionProperties) (uuid.UUID, error) {
	queue, err := c.queuePicker.Pick(r.queues)
	if err != nil {
		return uuid.Nil, err
	}
	return c.publisher.Publish(ctx, queue, props.ingestion(blob, format, r.authContext))
}

// FromDataFrame serializes df into a file in the staging directory, stages it and queues it.
// The file is removed before FromDataFrame returns, whatever the outcome.
func (c *Client) FromDataFrame(ctx context.Context, df DataFrame, props IngestionProperties) (*Result, error) {
	const op = errors.OpDataFrameIngest

	if df == nil {
		return nil, errors.ES(op, errors.KInvalidInput, "data frame cannot be nil").SetNoRetry()
	}
	format := c.serializer.Format()
	if props.Format != ingestoptions.DFUnknown && props.Format != format {
		return nil, errors.ES(op, errors.KInvalidInput, "data frames are serialized as %s, not %s", format, props.Format).SetNoRetry()
	}
	props.Format = format
	if err := props.Validate(); err != nil {
		return nil, errors.E(op, errors.KInvalidInput, err)
	}
	_, log := c.logger(ctx, op, props)

	pattern := fmt.Sprintf("df_%d_%d_*%s", c.now().Unix(), os.Getpid(), c.serializer.Ext())
	f, err := os.CreateTemp(c.stagingDir, pattern)
	if err != nil {
		return nil, errors.ES(op, errors.KInternal, "could not create a temporary file in %s: %s", c.stagingDir, err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("could not remove data frame file")
		}
	}()

	err = c.serializer.Serialize(f, df)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.ES(op, errors.KInvalidInput, "could not serialize the data frame: %s", err).SetNoRetry()
	}

	return c.fromFiles(ctx, op, []UploadSource{FromPath(path)}, []staging.DescriptorOption{staging.OwnTempFile(path)}, props)
}

// each runs f for every index, in order on the calling goroutine or on up to c.concurrency goroutines.
func (c *Client) each(ctx context.Context, n int, f func(ctx context.Context, i int)) {
	if c.concurrency == 1 || n == 1 {
		for i := 0; i < n; i++ {
			f(ctx, i)
		}
		return
	}

	g := errgroup.Group{}
	g.SetLimit(c.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			f(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

// logger returns a logger for one call and a context carrying it. A logger already on ctx wins.
func (c *Client) logger(ctx context.Context, op errors.Op, props IngestionProperties) (context.Context, *zerolog.Logger) {
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &c.log
	}
	l := base.With().Str("op", op.String()).Str("database", props.Database).Str("table", props.Table).Logger()
	return l.WithContext(ctx), &l
}

// itemErr names the item in err and reports it under op, keeping its Kind. An *errors.Error is nested
// whole, so its retry marking still counts.
func itemErr(op errors.Op, item string, err error) error {
	if inner, ok := err.(*errors.Error); ok {
		return errors.W(inner, errors.ES(op, inner.Kind, "%s", item))
	}
	e := errors.E(op, errors.KindOf(err), fmt.Errorf("%s: %w", item, err))
	if !errors.Retry(err) {
		e.SetNoRetry()
	}
	return e
}

// redact drops the query of a blob URL, which holds its SAS.
func redact(blobURL string) string {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
