package resources

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Authority hands out the resources needed to ingest: staging containers, ingestion queues and the
// authorization context. Every call returns one consistent set. Implementations must return once ctx is done,
// the Manager bounds each fetch with WithFetchTimeout through it.
type Authority interface {
	FetchIngestionResources(ctx context.Context) (*Snapshot, error)
}

// AuthorityFunc adapts a func to an Authority.
type AuthorityFunc func(ctx context.Context) (*Snapshot, error)

// FetchIngestionResources implements Authority.
func (f AuthorityFunc) FetchIngestionResources(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// NetDefaultDB is the database management commands about ingestion resources run against.
const NetDefaultDB = "NetDefaultDB"

const (
	getResourcesCmd = ".get ingestion resources"
	getIdentityCmd  = ".get kusto identity token"
	colResourceType = "ResourceTypeName"
	colStorageRoot  = "StorageRoot"
	colAuthContext  = "AuthorizationContext"
	resQueue        = "SecuredReadyForAggregationQueue"
	resTempStorage  = "TempStorage"
)

// Mgmt is a management endpoint of the ingestion service. Rows come back as column name to value.
type Mgmt interface {
	Mgmt(ctx context.Context, db string, command string) ([]map[string]string, error)
}

// MgmtAuthority is an Authority backed by the management commands of the ingestion service.
type MgmtAuthority struct {
	client Mgmt
}

// NewMgmtAuthority is the constructor for MgmtAuthority.
func NewMgmtAuthority(client Mgmt) *MgmtAuthority {
	return &MgmtAuthority{client: client}
}

// FetchIngestionResources implements Authority.
func (a *MgmtAuthority) FetchIngestionResources(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := a.client.Mgmt(ctx, NetDefaultDB, getResourcesCmd)
	if err != nil {
		return nil, errors.E(errors.OpResourceFetch, errors.KResourceUnavailable, fmt.Errorf("problem getting ingestion resources: %w", err))
	}

	for _, row := range rows {
		kind := row[colResourceType]
		// Status queues and tables are also listed, we only stage and publish.
		if kind != resQueue && kind != resTempStorage {
			continue
		}

		u, err := Parse(row[colStorageRoot])
		if err != nil {
			return nil, errors.ES(errors.OpResourceFetch, errors.KResourceUnavailable,
				"the StorageRoot URI received(%s) has an error: %s", row[colStorageRoot], err).SetNoRetry()
		}

		if kind == resQueue {
			snap.Queues = append(snap.Queues, u)
		} else {
			snap.Containers = append(snap.Containers, u)
		}
	}

	rows, err = a.client.Mgmt(ctx, NetDefaultDB, getIdentityCmd)
	if err != nil {
		return nil, errors.E(errors.OpResourceFetch, errors.KResourceUnavailable, fmt.Errorf("problem getting authorization context: %w", err))
	}
	if len(rows) != 1 {
		return nil, errors.ES(errors.OpResourceFetch, errors.KResourceUnavailable,
			"call for AuthContext returned %d rows, expected exactly one", len(rows)).SetNoRetry()
	}
	token, ok := rows[0][colAuthContext]
	if !ok || token == "" {
		return nil, errors.ES(errors.OpResourceFetch, errors.KResourceUnavailable,
			"call for AuthContext returned no %s column", colAuthContext).SetNoRetry()
	}
	snap.AuthContext = token

	return snap, nil
}

// RetryingAuthority retries a failing Authority with a backoff.BackOff. Errors that errors.Retry() marks as
// permanent are returned immediately.
type RetryingAuthority struct {
	inner      Authority
	newBackOff func() backoff.BackOff
	log        zerolog.Logger
}

// DefaultBackOff is an exponential backoff that gives up after a minute.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Minute
	return b
}

// NewRetryingAuthority wraps inner. newBackOff is called once per fetch, DefaultBackOff is used if it is nil.
func NewRetryingAuthority(inner Authority, newBackOff func() backoff.BackOff, log zerolog.Logger) *RetryingAuthority {
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	return &RetryingAuthority{inner: inner, newBackOff: newBackOff, log: log}
}

// FetchIngestionResources implements Authority.
func (r *RetryingAuthority) FetchIngestionResources(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	attempt := 0

	op := func() error {
		attempt++
		s, err := r.inner.FetchIngestionResources(ctx)
		if err == nil {
			snap = s
			return nil
		}

		var e *errors.Error
		if stderrors.As(err, &e) && !errors.Retry(err) {
			return backoff.Permanent(err)
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("fetching ingestion resources failed, retrying")
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return snap, nil
}
