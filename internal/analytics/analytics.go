// Package analytics maintains rolling usage counters with periodic
// point-in-time snapshots for historical reporting. It is best-effort by
// contract: persistence failures are logged and must never block or fail the
// registration pipeline.
package analytics

import "context"

// Kind selects which counter an event increments.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindVerification Kind = "verification"
	KindRejection    Kind = "rejection"
)

// HistoryLimit caps the snapshot history; the oldest entries are dropped.
const HistoryLimit = 30

// Snapshot is one point-in-time view of the counters. Counters are
// monotonically non-decreasing since process start.
type Snapshot struct {
	Registrations int64 `json:"registrations"`
	Verifications int64 `json:"verifications"`
	Rejections    int64 `json:"rejections"`
	Timestamp     int64 `json:"timestamp"`
}

// Store is the counter store shared by all request workers. Implementations
// must make the read-modify-write-persist sequence atomic.
type Store interface {
	// Increment bumps the counter for kind and refreshes the latest
	// timestamp, persisting before returning.
	Increment(ctx context.Context, kind Kind) error

	// TakeSnapshot appends a copy of the latest counters to history,
	// truncated to HistoryLimit entries, and persists.
	TakeSnapshot(ctx context.Context) error

	// Latest returns the current counters.
	Latest(ctx context.Context) (Snapshot, error)

	// History returns the snapshot history, oldest first.
	History(ctx context.Context) ([]Snapshot, error)
}
