package azkustoingest

import (
	"time"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/resources"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Option is an optional argument to New and NewAzure.
type Option func(c *Client)

// ContainerSelection is when a staging container is picked.
type ContainerSelection int

const (
	// SelectPerFile picks a container for every file. This is the default.
	SelectPerFile ContainerSelection = iota
	// SelectPerBatch picks one container for all files of a call.
	SelectPerBatch
)

// WithStagingDir is the directory data frames are written to before upload. It defaults to os.TempDir().
func WithStagingDir(dir string) Option {
	return func(c *Client) {
		c.stagingDir = dir
	}
}

// WithPicker sets how containers and queues are chosen. The default picks uniformly at random.
func WithPicker(p Picker) Option {
	return func(c *Client) {
		c.containerPicker = p
		c.queuePicker = p
	}
}

// WithContainerPicker sets how containers alone are chosen, for example NewRankedPicker.
func WithContainerPicker(p Picker) Option {
	return func(c *Client) {
		c.containerPicker = p
	}
}

// WithContainerSelection sets when containers are picked.
func WithContainerSelection(s ContainerSelection) Option {
	return func(c *Client) {
		c.selection = s
	}
}

// WithConcurrency processes up to n items of a call at once. The default of 1 processes them in order on the
// calling goroutine. Queued messages are not ordered either way.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithResourceTTL is how long staging containers and queues are cached. It defaults to an hour.
func WithResourceTTL(d time.Duration) Option {
	return func(c *Client) {
		c.resourceOpts = append(c.resourceOpts, resources.WithTTL(resources.Containers, d), resources.WithTTL(resources.Queues, d))
	}
}

// WithAuthContextTTL is how long the authorization context is cached. It defaults to an hour.
func WithAuthContextTTL(d time.Duration) Option {
	return func(c *Client) {
		c.resourceOpts = append(c.resourceOpts, resources.WithTTL(resources.AuthContext, d))
	}
}

// WithResourceValidity is how long cached resources may still be used while the resource authority fails.
// It defaults to two hours and is never shorter than a TTL.
func WithResourceValidity(d time.Duration) Option {
	return func(c *Client) {
		c.resourceOpts = append(c.resourceOpts, resources.WithValidity(d))
	}
}

// WithResourceFetchTimeout bounds one fetch from the resource authority, retries included. It defaults to two minutes.
func WithResourceFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.resourceOpts = append(c.resourceOpts, resources.WithFetchTimeout(d))
	}
}

// WithAuthorityRetry retries failed resource fetches with the backoff newBackOff returns, one per fetch.
// A nil newBackOff retries with exponential backoff for up to a minute.
func WithAuthorityRetry(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.retry = true
		c.newBackOff = newBackOff
	}
}

// WithLogger sets the logger. A logger on the context of a call is preferred to it.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithDataFrameSerializer replaces the gzip compressed CSV serializer used by FromDataFrame.
func WithDataFrameSerializer(s DataFrameSerializer) Option {
	return func(c *Client) {
		c.serializer = s
	}
}

// WithMetrics registers the client's metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}
