// Package resources contains objects that are used to gather information about Kusto resources that are
// used during various ingestion methods.
package resources

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched kind is served without asking the authority again.
	DefaultTTL = time.Hour
	// DefaultValidity is how long a fetched value may be served at all, when refreshes keep failing.
	DefaultValidity = 2 * time.Hour
	// DefaultFetchTimeout bounds one fetch from the authority, retries included.
	DefaultFetchTimeout = 2 * time.Minute

	flightKey = "ingestion-resources"
)

type entry struct {
	snap       *Snapshot
	expires    time.Time
	validUntil time.Time
}

type slot struct {
	cur   atomic.Pointer[entry]
	state atomic.Int32
}

// Option configures a Manager.
type Option func(m *Manager)

// WithTTL sets the time to live of one kind.
func WithTTL(k Kind, d time.Duration) Option {
	return func(m *Manager) {
		m.ttl[k] = d
	}
}

// WithValidity sets how long after a fetch a value may still be served while refreshes fail.
// It is raised to the largest TTL if set below it.
func WithValidity(d time.Duration) Option {
	return func(m *Manager) {
		m.validity = d
	}
}

// WithFetchTimeout bounds every fetch from the authority. A fetch is shared by all waiting callers and does not
// stop when they give up, so a hung authority would otherwise hold the flight forever.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger used when the context does not carry one.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithFetchObserver registers a func called after every fetch from the authority with its outcome.
func WithFetchObserver(f func(err error)) Option {
	return func(m *Manager) {
		m.observe = f
	}
}

// Manager is a TTL cache of ingestion resources. Every kind moves through Empty, Valid, Refreshing and Stale.
// At most one fetch is in flight at any time and a successful fetch replaces all kinds at once.
// Reads of a Valid kind take no lock.
type Manager struct {
	authority Authority
	ttl       [numKinds]time.Duration
	validity  time.Duration
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
	observe   func(err error)

	slots   [numKinds]slot
	group   singleflight.Group
	fetches atomic.Int64
	closed  atomic.Bool
}

// New is the constructor for Manager.
func New(authority Authority, opts ...Option) (*Manager, error) {
	if authority == nil {
		return nil, errors.ES(errors.OpResourceFetch, errors.KInvalidInput, "a resource authority must be provided").SetNoRetry()
	}

	m := &Manager{
		authority: authority,
		ttl:       [numKinds]time.Duration{DefaultTTL, DefaultTTL, DefaultTTL},
		validity:  DefaultValidity,
		timeout:   DefaultFetchTimeout,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}

	if m.timeout <= 0 {
		return nil, errors.ES(errors.OpResourceFetch, errors.KInvalidInput, "fetch timeout must be positive, was %s", m.timeout).SetNoRetry()
	}
	for _, k := range Kinds {
		if m.ttl[k] <= 0 {
			return nil, errors.ES(errors.OpResourceFetch, errors.KInvalidInput, "TTL of %s must be positive, was %s", k, m.ttl[k]).SetNoRetry()
		}
		if m.validity < m.ttl[k] {
			m.validity = m.ttl[k]
		}
	}

	return m, nil
}

// Close closes the manager. Calls made after Close fail.
func (m *Manager) Close() {
	m.closed.Store(true)
}

// Fetches is the number of times the authority was asked for resources.
func (m *Manager) Fetches() int64 {
	return m.fetches.Load()
}

// State reports the state of a kind. A Valid kind whose TTL passed is observed as Stale.
func (m *Manager) State(k Kind) State {
	s := &m.slots[k]
	st := State(s.state.Load())
	if st == Valid {
		if e := s.cur.Load(); e == nil || !m.now().Before(e.expires) {
			s.state.CompareAndSwap(int32(Valid), int32(Stale))
			return Stale
		}
	}
	return st
}

// Containers returns the containers to stage blobs into. The slice must not be modified.
func (m *Manager) Containers(ctx context.Context) ([]*URI, error) {
	s, err := m.Snapshot(ctx, Containers)
	if err != nil {
		return nil, err
	}
	return s.Containers, nil
}

// Queues returns the queues to publish ingestion descriptors to. The slice must not be modified.
func (m *Manager) Queues(ctx context.Context) ([]*URI, error) {
	s, err := m.Snapshot(ctx, Queues)
	if err != nil {
		return nil, err
	}
	return s.Queues, nil
}

// AuthContext returns the authorization context to put on every descriptor.
func (m *Manager) AuthContext(ctx context.Context) (string, error) {
	s, err := m.Snapshot(ctx, AuthContext)
	if err != nil {
		return "", err
	}
	return s.AuthContext, nil
}

// Snapshot returns the snapshot currently serving kind k, fetching one if the kind is not Valid.
func (m *Manager) Snapshot(ctx context.Context, k Kind) (*Snapshot, error) {
	if m.closed.Load() {
		return nil, errors.ES(errors.OpResourceFetch, errors.KInternal, "resource manager was closed").SetNoRetry()
	}
	if k < 0 || int(k) >= numKinds {
		return nil, errors.ES(errors.OpResourceFetch, errors.KInternal, "unknown resource kind %d", k).SetNoRetry()
	}

	s := &m.slots[k]
	if e := s.cur.Load(); e != nil && m.now().Before(e.expires) {
		return e.snap, nil
	}

	// The fetch is shared by every caller of every kind, so it must outlive the one that started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(flightKey, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, m.timeout)
		defer cancel()
		return m.refresh(fctx, k)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, errors.E(errors.OpResourceFetch, errors.KTimeout, ctx.Err())
	case res = <-ch:
	}

	if res.Err == nil {
		return res.Val.(*Snapshot), nil
	}

	// The refresh failed. Serve what we have for this kind if it is still inside its validity window.
	if e := s.cur.Load(); e != nil && m.now().Before(e.validUntil) {
		m.logger(ctx).Warn().Err(res.Err).Str("kind", k.String()).Time("fetchedAt", e.snap.FetchedAt).
			Msg("resource refresh failed, serving stale value")
		return e.snap, nil
	}
	return nil, res.Err
}

// refresh runs inside the single flight. It re-checks freshness so that callers who queued behind a flight that
// just succeeded do not trigger a second fetch.
func (m *Manager) refresh(ctx context.Context, k Kind) (*Snapshot, error) {
	now := m.now()
	if e := m.slots[k].cur.Load(); e != nil && now.Before(e.expires) {
		return e.snap, nil
	}

	for _, kind := range Kinds {
		s := &m.slots[kind]
		if e := s.cur.Load(); e == nil || !now.Before(e.expires) {
			s.state.Store(int32(Refreshing))
		}
	}

	snap, err := m.fetch(ctx)
	if err != nil {
		m.failed()
		return nil, err
	}

	return m.install(snap), nil
}

func (m *Manager) fetch(ctx context.Context) (*Snapshot, error) {
	m.fetches.Add(1)
	log := m.logger(ctx)

	snap, err := m.authority.FetchIngestionResources(ctx)
	if err == nil && snap == nil {
		err = errors.ES(errors.OpResourceFetch, errors.KInternal, "resource authority returned no resources and no error")
	}
	if m.observe != nil {
		m.observe(err)
	}
	if err != nil {
		log.Error().Err(err).Msg("fetching ingestion resources failed")
		return nil, errors.E(errors.OpResourceFetch, errors.KResourceUnavailable, err)
	}

	log.Debug().Int("containers", len(snap.Containers)).Int("queues", len(snap.Queues)).
		Msg("fetched ingestion resources")
	return snap, nil
}

// install replaces every kind with the new snapshot and returns the copy it stored.
func (m *Manager) install(snap *Snapshot) *Snapshot {
	cp := *snap
	cp.FetchedAt = m.now()

	for _, k := range Kinds {
		s := &m.slots[k]
		s.cur.Store(&entry{
			snap:       &cp,
			expires:    cp.FetchedAt.Add(m.ttl[k]),
			validUntil: cp.FetchedAt.Add(m.validity),
		})
		s.state.Store(int32(Valid))
	}
	return &cp
}

// failed moves every refreshing kind to Stale if its value may still be served, otherwise to Empty.
func (m *Manager) failed() {
	now := m.now()
	for _, k := range Kinds {
		s := &m.slots[k]
		if State(s.state.Load()) != Refreshing {
			continue
		}
		if e := s.cur.Load(); e != nil && now.Before(e.validUntil) {
			s.state.Store(int32(Stale))
			continue
		}
		s.cur.Store(nil)
		s.state.Store(int32(Empty))
	}
}

func (m *Manager) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &m.log
}
