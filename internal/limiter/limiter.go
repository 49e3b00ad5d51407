// Package limiter implements the client-side vote admission gate: at most
// DailyLimit votes per rolling 24 hours, never twice for the same
// performance within the window, with history persisted locally so the quota
// survives restarts. It is an admission check only — forwarding an admitted
// vote to the remote tally is the caller's job.
package limiter

import (
	"sync"
	"time"

	"karaoke-client/internal/domain"
	"karaoke-client/internal/localstore"
	"karaoke-client/pkg/apperrors"
	"karaoke-client/pkg/logger"
)

const (
	// DailyLimit is the number of votes one client may cast per rolling window
	DailyLimit = 2

	// Window is the rolling window length. Strictly sliding: a vote cast at
	// 23:50 expires at 23:50 the next day, not at midnight.
	Window = 24 * time.Hour

	// StorageKey is the local store key holding the serialized ledger
	StorageKey = "karaoke_votes"

	// DefaultSweepInterval is how often expired records are pruned so the
	// remaining quota visibly recovers without user action
	DefaultSweepInterval = time.Minute
)

// VoteLimiter gates and records votes for one client. All methods are safe
// for concurrent use; the ledger is serialized behind a single mutex.
type VoteLimiter struct {
	store         localstore.Store
	log           *logger.Logger
	now           func() time.Time
	sweepInterval time.Duration

	mu     sync.Mutex
	ledger ledger

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	running     bool
}

// Option customizes a VoteLimiter
type Option func(*VoteLimiter)

// WithClock overrides the wall clock, for deterministic tests
func WithClock(now func() time.Time) Option {
	return func(v *VoteLimiter) { v.now = now }
}

// WithSweepInterval overrides the expiry sweep cadence
func WithSweepInterval(d time.Duration) Option {
	return func(v *VoteLimiter) {
		if d > 0 {
			v.sweepInterval = d
		}
	}
}

// New creates a vote limiter backed by the given local store. Call Start to
// load history and begin the expiry sweep, and Stop to tear the sweep down.
func New(store localstore.Store, log *logger.Logger, opts ...Option) *VoteLimiter {
	v := &VoteLimiter{
		store:         store,
		log:           log,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start loads the ledger from the local store and begins the periodic expiry
// sweep. It always succeeds: unreadable or corrupt history is discarded and
// the limiter starts from an empty ledger.
func (v *VoteLimiter) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.running {
		return nil
	}

	v.ledger = v.loadLedger()
	v.persistLocked()

	// Fresh ticker and stop channel per Start so the limiter can be
	// restarted after Stop.
	v.sweepTicker = time.NewTicker(v.sweepInterval)
	v.stopSweep = make(chan struct{})
	go v.sweepLoop(v.sweepTicker, v.stopSweep)

	v.running = true
	v.log.WithFields(map[string]interface{}{
		"votes_remaining": v.ledger.remaining(DailyLimit, v.now(), Window),
		"history_size":    v.ledger.len(),
	}).Info("Vote limiter started")
	return nil
}

// Stop cancels the expiry sweep. Idempotent; Start may be called again
// afterwards.
func (v *VoteLimiter) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running {
		return
	}
	v.sweepTicker.Stop()
	close(v.stopSweep)
	v.running = false
	v.log.Info("Vote limiter stopped")
}

// CanVoteFor reports whether the client may still vote for the performance:
// true iff no non-expired vote for it exists. Pure query; vacuously true on
// an empty or not-yet-loaded ledger.
func (v *VoteLimiter) CanVoteFor(performanceID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return !v.ledger.has(performanceID, v.now(), Window)
}

// VotesRemaining returns how many votes are left in the rolling window
func (v *VoteLimiter) VotesRemaining() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.ledger.remaining(DailyLimit, v.now(), Window)
}

// NextAvailableAt returns when the next vote frees up, or nil while capacity
// remains.
func (v *VoteLimiter) NextAvailableAt() *time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.ledger.nextAvailableAt(DailyLimit, v.now(), Window)
}

// Status returns the quota snapshot the UI layer renders from
func (v *VoteLimiter) Status() domain.VoteStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	return domain.VoteStatus{
		VotesRemaining:  v.ledger.remaining(DailyLimit, now, Window),
		DailyLimit:      DailyLimit,
		NextAvailableAt: v.ledger.nextAvailableAt(DailyLimit, now, Window),
	}
}

// RecordVote admits and records one vote. Preconditions are checked in
// order, first failure wins: a duplicate vote for the performance is
// rejected before the quota is consulted. On success the vote is appended
// and the ledger persisted; the caller is then expected to issue exactly one
// remote tally increment. RecordVote itself never touches the network and is
// never rolled back if that increment later fails.
func (v *VoteLimiter) RecordVote(performanceID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()

	if v.ledger.has(performanceID, now, Window) {
		return apperrors.NewDuplicateVoteError(performanceID)
	}

	if v.ledger.remaining(DailyLimit, now, Window) <= 0 {
		return apperrors.NewLimitExceededError(DailyLimit, v.ledger.nextAvailableAt(DailyLimit, now, Window))
	}

	v.ledger = v.ledger.append(domain.NewVoteRecord(performanceID, now))
	v.persistLocked()

	v.log.WithFields(map[string]interface{}{
		"performance_id":  performanceID,
		"votes_remaining": v.ledger.remaining(DailyLimit, now, Window),
	}).Info("Vote recorded")
	return nil
}

// loadLedger reads history from the local store. Both read failures and
// unparsable data degrade to an empty ledger: a client with broken storage
// votes as if it had no history.
func (v *VoteLimiter) loadLedger() ledger {
	raw, ok, err := v.store.Get(StorageKey)
	if err != nil {
		v.log.WithError(err).Warn("Failed to read vote history, starting empty")
		return ledger{}
	}
	if !ok {
		return ledger{}
	}

	l, err := decodeLedger(raw)
	if err != nil {
		v.log.WithError(err).Warn("Discarding corrupt vote history")
		_ = v.store.Delete(StorageKey)
		return ledger{}
	}
	return l.active(v.now(), Window)
}

// persistLocked prunes expired records and rewrites the whole ledger.
// Storage failures are logged and swallowed; admission already happened in
// memory and availability wins over strict durability here.
func (v *VoteLimiter) persistLocked() {
	v.ledger = v.ledger.active(v.now(), Window)
	raw, err := v.ledger.encode()
	if err != nil {
		v.log.WithError(err).Warn("Failed to encode vote history")
		return
	}
	if err := v.store.Set(StorageKey, raw); err != nil {
		v.log.WithError(err).Warn("Failed to persist vote history")
	}
}

// sweepLoop re-filters and persists the ledger on a timer so VotesRemaining
// recovers and NextAvailableAt stays accurate without any user action. The
// ticker and stop channel are parameters, not field reads, so a restarted
// limiter never shares them with an old goroutine.
func (v *VoteLimiter) sweepLoop(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			v.sweep()
		case <-stop:
			return
		}
	}
}

func (v *VoteLimiter) sweep() {
	v.mu.Lock()
	defer v.mu.Unlock()

	before := v.ledger.len()
	v.persistLocked()
	if pruned := before - v.ledger.len(); pruned > 0 {
		v.log.WithField("pruned", pruned).Debug("Expired vote records pruned")
	}
}
