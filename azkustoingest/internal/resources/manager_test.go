package resources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingAuthority hands out numbered snapshots. fail makes calls error, gate blocks calls until closed.
type countingAuthority struct {
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
}

func (a *countingAuthority) FetchIngestionResources(ctx context.Context) (*Snapshot, error) {
	n := a.calls.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	if a.fail.Load() {
		return nil, fmt.Errorf("authority unavailable")
	}
	return &Snapshot{
		Containers:  []*URI{mustParse(fmt.Sprintf("https://account%d.blob.core.windows.net/container", n))},
		Queues:      []*URI{mustParse(fmt.Sprintf("https://account%d.queue.core.windows.net/queue", n))},
		AuthContext: fmt.Sprintf("token%d", n),
	}, nil
}

func newTestManager(t *testing.T, a Authority, opts ...Option) (*Manager, *fakeClock) {
	clock := newFakeClock()
	m, err := New(a, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, clock
}

func TestManagerFetchesOncePerTTL(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{}
	m, clock := newTestManager(t, a)
	ctx := context.Background()

	assert.Equal(t, Empty, m.State(Containers))

	for i := 0; i < 10; i++ {
		_, err := m.Containers(ctx)
		require.NoError(t, err)
		_, err = m.Queues(ctx)
		require.NoError(t, err)
		token, err := m.AuthContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, "token1", token)
	}
	assert.EqualValues(t, 1, m.Fetches())
	assert.Equal(t, Valid, m.State(Queues))

	clock.Advance(DefaultTTL + time.Second)
	assert.Equal(t, Stale, m.State(Containers))

	for i := 0; i < 10; i++ {
		token, err := m.AuthContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, "token2", token)
	}
	assert.EqualValues(t, 2, m.Fetches())
	assert.Equal(t, Valid, m.State(Containers))
}

func TestManagerSnapshotIsConsistent(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{}
	m, clock := newTestManager(t, a, WithTTL(AuthContext, 10*time.Minute))
	ctx := context.Background()

	_, err := m.Containers(ctx)
	require.NoError(t, err)

	// Only the auth context expired, but its refresh replaces every kind.
	clock.Advance(11 * time.Minute)
	_, err = m.AuthContext(ctx)
	require.NoError(t, err)

	containers, err := m.Containers(ctx)
	require.NoError(t, err)
	queues, err := m.Queues(ctx)
	require.NoError(t, err)
	assert.Equal(t, "account2.blob.core.windows.net", containers[0].Account())
	assert.Equal(t, "account2.queue.core.windows.net", queues[0].Account())
	assert.EqualValues(t, 2, m.Fetches())
}

func TestManagerConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{gate: make(chan struct{})}
	m, _ := newTestManager(t, a)
	ctx := context.Background()

	const callers = 50
	results := make([]*Snapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Snapshot(ctx, Kinds[i%numKinds])
			assert.NoError(t, err)
			results[i] = s
		}()
	}

	require.Eventually(t, func() bool { return a.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Refreshing, m.State(Queues))
	close(a.gate)
	wg.Wait()

	assert.EqualValues(t, 1, m.Fetches())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestManagerStaleFallback(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{}
	m, clock := newTestManager(t, a)
	ctx := context.Background()

	_, err := m.Queues(ctx)
	require.NoError(t, err)

	a.fail.Store(true)
	clock.Advance(DefaultTTL + time.Minute)

	// Inside the validity window the old value is served.
	token, err := m.AuthContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token1", token)
	assert.Equal(t, Stale, m.State(AuthContext))

	// Past it, the value is dropped.
	clock.Advance(DefaultValidity)
	_, err = m.AuthContext(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KResourceUnavailable))
	assert.Equal(t, Empty, m.State(AuthContext))

	a.fail.Store(false)
	token, err = m.AuthContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("token%d", a.calls.Load()), token)
}

func TestManagerFirstFetchFails(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{}
	a.fail.Store(true)
	m, _ := newTestManager(t, a)

	_, err := m.Containers(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KResourceUnavailable, errors.KindOf(err))
	assert.Equal(t, Empty, m.State(Containers))
}

func TestManagerFetchObserverAndClose(t *testing.T) {
	t.Parallel()

	var observed []error
	m, _ := newTestManager(t, &countingAuthority{}, WithFetchObserver(func(err error) { observed = append(observed, err) }))

	_, err := m.Queues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []error{nil}, observed)

	m.Close()
	_, err = m.Queues(context.Background())
	assert.Error(t, err)
}

func TestManagerCallerCancel(t *testing.T) {
	t.Parallel()

	a := &countingAuthority{gate: make(chan struct{})}
	m, _ := newTestManager(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Containers(ctx)
	assert.True(t, errors.Is(err, errors.KTimeout))

	// The shared fetch still completes for the next caller.
	close(a.gate)
	_, err = m.Containers(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 1, m.Fetches())
}

func TestManagerFetchTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	hung := AuthorityFunc(func(ctx context.Context) (*Snapshot, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &Snapshot{AuthContext: "token"}, nil
	})
	m, _ := newTestManager(t, hung, WithFetchTimeout(20*time.Millisecond))

	_, err := m.AuthContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KResourceUnavailable, errors.KindOf(err))

	// The timed out flight was released, so the next caller starts a new fetch.
	token, err := m.AuthContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token", token)
	assert.EqualValues(t, 2, m.Fetches())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&countingAuthority{}, WithTTL(Queues, 0))
	assert.Error(t, err)

	_, err = New(&countingAuthority{}, WithFetchTimeout(0))
	assert.Error(t, err)

	m, err := New(&countingAuthority{}, WithTTL(Queues, 3*time.Hour), WithValidity(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, m.validity)
}
