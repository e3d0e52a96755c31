package resources

import (
	"math/rand"
	"sort"
	"time"
)

const (
	rankBuckets    = 6
	rankBucketSpan = 10 * time.Second
)

// rankTiers are the lowest success percentages of each tier, best tier first.
var rankTiers = []int{90, 70, 30, 0}

type outcomes struct {
	ok, total int
}

// accountWindow is a ring of outcome buckets for one account, the newest at cur.
type accountWindow struct {
	buckets []outcomes
	cur     int
	// start is when the bucket at cur began.
	start time.Time
}

// advance moves cur to the bucket covering now, clearing the buckets skipped on the way.
func (w *accountWindow) advance(now time.Time, span time.Duration) {
	passed := int(now.Sub(w.start) / span)
	if passed <= 0 {
		return
	}
	for i := 1; i <= passed && i <= len(w.buckets); i++ {
		w.buckets[(w.cur+i)%len(w.buckets)] = outcomes{}
	}
	w.cur = (w.cur + passed) % len(w.buckets)
	w.start = w.start.Add(time.Duration(passed) * span)
}

// rank is the success rate over the window. Bucket i counting from the oldest weighs i, so recent
// outcomes dominate. A window with no outcomes ranks 1.
func (w *accountWindow) rank() float64 {
	var sum, weights float64
	for i := 1; i <= len(w.buckets); i++ {
		b := w.buckets[(w.cur+i)%len(w.buckets)]
		if b.total == 0 {
			continue
		}
		sum += float64(i) * float64(b.ok) / float64(b.total)
		weights += float64(i)
	}
	if weights == 0 {
		return 1
	}
	return sum / weights
}

// accountRanks tracks recent upload outcomes per storage account and orders accounts by them.
// It is not safe for concurrent use.
type accountRanks struct {
	now     func() time.Time
	rnd     *rand.Rand
	span    time.Duration
	size    int
	tiers   []int
	windows map[string]*accountWindow
}

func newAccountRanks(rnd *rand.Rand, now func() time.Time) *accountRanks {
	return &accountRanks{
		now:     now,
		rnd:     rnd,
		span:    rankBucketSpan,
		size:    rankBuckets,
		tiers:   rankTiers,
		windows: map[string]*accountWindow{},
	}
}

// track starts ranking account. Outcomes of accounts that are not tracked are dropped.
func (a *accountRanks) track(account string) {
	if _, ok := a.windows[account]; !ok {
		a.windows[account] = &accountWindow{buckets: make([]outcomes, a.size), start: a.now()}
	}
}

func (a *accountRanks) record(account string, ok bool) {
	w, found := a.windows[account]
	if !found {
		return
	}
	w.advance(a.now(), a.span)
	w.buckets[w.cur].total++
	if ok {
		w.buckets[w.cur].ok++
	}
}

// rank reports the rank of account and whether it is tracked.
func (a *accountRanks) rank(account string) (float64, bool) {
	w, ok := a.windows[account]
	if !ok {
		return 0, false
	}
	w.advance(a.now(), a.span)
	return w.rank(), true
}

// ordered returns every tracked account, best tier first and shuffled within a tier.
func (a *accountRanks) ordered() []string {
	byTier := make([][]string, len(a.tiers))
	for account := range a.windows {
		r, _ := a.rank(account)
		pct := int(r * 100)
		for i, floor := range a.tiers {
			if pct >= floor {
				byTier[i] = append(byTier[i], account)
				break
			}
		}
	}

	var out []string
	for _, tier := range byTier {
		// Map order is random, sorting first keeps a seeded order reproducible.
		sort.Strings(tier)
		a.rnd.Shuffle(len(tier), func(i, j int) { tier[i], tier[j] = tier[j], tier[i] })
		out = append(out, tier...)
	}
	return out
}
