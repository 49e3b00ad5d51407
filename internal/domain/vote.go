package domain

import "time"

// VoteRecord is one cast vote as persisted in the local ledger. The JSON
// field names are the on-disk wire format and must not change without a
// migration path (there is none today — incompatible data is discarded
// wholesale on load).
type VoteRecord struct {
	PerformanceID string `json:"performanceId"`
	Timestamp     int64  `json:"timestamp"` // milliseconds since epoch
}

// NewVoteRecord creates a vote record for a performance cast at the given time
func NewVoteRecord(performanceID string, castAt time.Time) VoteRecord {
	return VoteRecord{
		PerformanceID: performanceID,
		Timestamp:     castAt.UnixMilli(),
	}
}

// VoteReceipt confirms one accepted vote: the new authoritative total and
// the quota left afterwards.
type VoteReceipt struct {
	PerformanceID  string    `json:"performance_id"`
	Total          int64     `json:"total"`
	VotesRemaining int       `json:"votes_remaining"`
	CastAt         time.Time `json:"cast_at"`
}

// CastAt returns the vote's timestamp as a time.Time
func (r VoteRecord) CastAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// ExpiresAt returns the instant the record falls out of the rolling window
func (r VoteRecord) ExpiresAt(window time.Duration) time.Time {
	return r.CastAt().Add(window)
}

// Expired reports whether the record is outside the rolling window ending now
func (r VoteRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.CastAt()) >= window
}
