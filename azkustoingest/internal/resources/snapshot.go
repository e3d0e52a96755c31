package resources

import (
	"time"
)

// Kind is one of the cached resource collections.
type Kind int

const (
	// Containers are the blob storage containers data is staged into.
	Containers Kind = iota
	// Queues are the ingestion queues descriptors are published to.
	Queues
	// AuthContext is the authorization context embedded into every descriptor.
	AuthContext

	numKinds = 3
)

// Kinds lists every cached kind.
var Kinds = [numKinds]Kind{Containers, Queues, AuthContext}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Containers:
		return "containers"
	case Queues:
		return "queues"
	case AuthContext:
		return "authcontext"
	}
	return "unknown"
}

// State is the cache state of one Kind.
type State int32

const (
	// Empty means nothing was fetched yet, or the last value aged past the validity window.
	Empty State = iota
	// Valid means a value younger than its TTL is held.
	Valid
	// Refreshing means a fetch is in flight.
	Refreshing
	// Stale means the held value is past its TTL. It may still be served if a refresh fails.
	Stale
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Valid:
		return "Valid"
	case Refreshing:
		return "Refreshing"
	case Stale:
		return "Stale"
	}
	return "unknown"
}

// Snapshot is the result of one fetch from the resource authority. It is never modified once handed to the cache.
type Snapshot struct {
	Containers  []*URI
	Queues      []*URI
	AuthContext string
	FetchedAt   time.Time
}
