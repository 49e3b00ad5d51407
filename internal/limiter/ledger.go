package limiter

import (
	"encoding/json"
	"sort"
	"time"

	"karaoke-client/internal/domain"
)

// ledger is the ordered collection of past vote records for one client.
// Records are kept sorted by timestamp ascending so the oldest active vote,
// which determines when capacity next frees up, is always first.
type ledger struct {
	records []domain.VoteRecord
}

// decodeLedger parses a stored ledger blob. A nil error with an empty ledger
// is returned for empty input; malformed input returns the parse error so the
// caller can decide to discard history.
func decodeLedger(raw []byte) (ledger, error) {
	if len(raw) == 0 {
		return ledger{}, nil
	}
	var records []domain.VoteRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return ledger{}, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return ledger{records: records}, nil
}

// encode serializes the ledger in the on-disk wire format
func (l ledger) encode() ([]byte, error) {
	if l.records == nil {
		return json.Marshal([]domain.VoteRecord{})
	}
	return json.Marshal(l.records)
}

// active returns a ledger holding only records still inside the rolling
// window ending at now, preserving order.
func (l ledger) active(now time.Time, window time.Duration) ledger {
	kept := make([]domain.VoteRecord, 0, len(l.records))
	for _, r := range l.records {
		if !r.Expired(now, window) {
			kept = append(kept, r)
		}
	}
	return ledger{records: kept}
}

// has reports whether a non-expired record exists for the performance
func (l ledger) has(performanceID string, now time.Time, window time.Duration) bool {
	for _, r := range l.records {
		if r.PerformanceID == performanceID && !r.Expired(now, window) {
			return true
		}
	}
	return false
}

// remaining returns how many votes are left within the window, never negative
func (l ledger) remaining(limit int, now time.Time, window time.Duration) int {
	n := limit - len(l.active(now, window).records)
	if n < 0 {
		return 0
	}
	return n
}

// nextAvailableAt returns when the oldest active vote expires, or nil while
// capacity remains or the ledger is empty.
func (l ledger) nextAvailableAt(limit int, now time.Time, window time.Duration) *time.Time {
	act := l.active(now, window)
	if len(act.records) < limit || len(act.records) == 0 {
		return nil
	}
	next := act.records[0].ExpiresAt(window)
	return &next
}

// append adds a record, keeping timestamp order
func (l ledger) append(r domain.VoteRecord) ledger {
	records := append(append([]domain.VoteRecord(nil), l.records...), r)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return ledger{records: records}
}

func (l ledger) len() int {
	return len(l.records)
}
