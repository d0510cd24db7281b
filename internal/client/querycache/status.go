package querycache

import "time"

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusPending Status = iota
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of one entry as seen by readers and subscribers.
type State struct {
	Value     any
	HasValue  bool
	Status    Status
	Err       error
	FetchedAt time.Time
}

// IsLoading reports whether a load is outstanding for the entry.
func (s State) IsLoading() bool {
	return s.Status == StatusPending
}
