package resources

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/samber/lo"
)

// Picker chooses one resource out of a set of equivalent ones.
type Picker interface {
	Pick(candidates []*URI) (*URI, error)
}

// Reporter is implemented by pickers that learn from the outcome of using what they picked.
type Reporter interface {
	Report(account string, ok bool)
}

func errNoCandidates() error {
	return errors.ES(errors.OpUnknown, errors.KResourceUnavailable, "there are no resources to pick from").SetNoRetry()
}

// UniformPicker picks independently and uniformly at random. It is safe for concurrent use.
type UniformPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewUniformPicker returns a UniformPicker seeded with seed.
func NewUniformPicker(seed int64) *UniformPicker {
	return &UniformPicker{rnd: rand.New(rand.NewSource(seed))}
}

// NewDefaultPicker returns a UniformPicker seeded from the clock.
func NewDefaultPicker() *UniformPicker {
	return NewUniformPicker(time.Now().UnixNano())
}

// Pick implements Picker.
func (p *UniformPicker) Pick(candidates []*URI) (*URI, error) {
	if len(candidates) == 0 {
		return nil, errNoCandidates()
	}

	p.mu.Lock()
	i := p.rnd.Intn(len(candidates))
	p.mu.Unlock()

	return candidates[i], nil
}

// RankedPicker prefers storage accounts that recently accepted uploads. Accounts are grouped into tiers by their
// success rate over the last minute, a random account of the best tier is used and one of its resources is picked
// uniformly. Outcomes are fed back through Report.
type RankedPicker struct {
	mu    sync.Mutex
	ranks *accountRanks
	rnd   *rand.Rand
}

// NewRankedPicker is the constructor for RankedPicker.
func NewRankedPicker(seed int64) *RankedPicker {
	return newRankedPicker(seed, time.Now)
}

func newRankedPicker(seed int64, now func() time.Time) *RankedPicker {
	rnd := rand.New(rand.NewSource(seed))
	return &RankedPicker{ranks: newAccountRanks(rnd, now), rnd: rnd}
}

// Pick implements Picker.
func (p *RankedPicker) Pick(candidates []*URI) (*URI, error) {
	if len(candidates) == 0 {
		return nil, errNoCandidates()
	}

	byAccount := lo.GroupBy(candidates, func(u *URI) string { return u.Account() })

	p.mu.Lock()
	defer p.mu.Unlock()

	for account := range byAccount {
		p.ranks.track(account)
	}

	for _, account := range p.ranks.ordered() {
		if uris, ok := byAccount[account]; ok {
			return uris[p.rnd.Intn(len(uris))], nil
		}
	}
	return nil, errors.ES(errors.OpUnknown, errors.KInternal, "ranked accounts did not cover the candidates")
}

// Report implements Reporter.
func (p *RankedPicker) Report(account string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ranks.record(account, ok)
}
