// Package tally defines the narrow contract the voting client assumes of
// the remote vote count of record. The backend behind it is interchangeable;
// nothing above this interface knows which vendor holds the counters. The
// remote side enforces no per-client limits — all throttling happens in the
// local limiter, which makes the tally only as trustworthy as each client's
// enforcement. That trust boundary is accepted, not worked around here.
package tally

import (
	"context"

	"karaoke-client/internal/domain"
)

// Tally is the authoritative, shared vote counter service
type Tally interface {
	// Increment atomically adds one to the performance's counter and
	// returns the new total
	Increment(ctx context.Context, performanceID string) (int64, error)

	// Counts fetches the current counters for the given performances.
	// Performances with no recorded votes are returned with a zero count.
	Counts(ctx context.Context, performanceIDs ...string) (map[string]int64, error)
}

// Catalog lists the performances open for voting
type Catalog interface {
	ListPerformances(ctx context.Context) ([]domain.Performance, error)
}
