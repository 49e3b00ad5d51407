package limiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"karaoke-client/internal/domain"
	"karaoke-client/internal/localstore"
	"karaoke-client/pkg/apperrors"
	"karaoke-client/pkg/logger"
)

// fakeClock is a settable wall clock for deterministic window tests. The
// mutex matters: the sweep goroutine reads the clock while tests advance it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 14, 20, 30, 0, 0, time.UTC)}
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

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestLimiter(t *testing.T) (*VoteLimiter, *fakeClock, *localstore.MemoryStore) {
	t.Helper()

	clock := newFakeClock()
	store := localstore.NewMemoryStore()
	lim := New(store, testLogger(), WithClock(clock.Now))
	require.NoError(t, lim.Start())
	t.Cleanup(lim.Stop)

	return lim, clock, store
}

func TestRecordVote_DailyLimit(t *testing.T) {
	lim, _, _ := newTestLimiter(t)

	// Distinct items: the n-th vote succeeds iff n <= DailyLimit
	for i := 1; i <= DailyLimit; i++ {
		err := lim.RecordVote(fmt.Sprintf("performance-%d", i))
		assert.NoError(t, err, "vote %d should be admitted", i)
	}

	for i := DailyLimit + 1; i <= DailyLimit+3; i++ {
		err := lim.RecordVote(fmt.Sprintf("performance-%d", i))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLimitExceeded),
			"vote %d should be rejected with limit_exceeded, got %v", i, err)
	}

	assert.Equal(t, 0, lim.VotesRemaining())
}

func TestRecordVote_DuplicateRejectedBeforeQuota(t *testing.T) {
	lim, _, _ := newTestLimiter(t)

	require.NoError(t, lim.RecordVote("A"))

	// Second vote for the same item is a duplicate regardless of quota
	err := lim.RecordVote("A")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDuplicateVote))
	assert.Equal(t, DailyLimit-1, lim.VotesRemaining(), "rejected vote must not consume quota")

	// Exhaust the quota, then vote for A again: duplicate still wins the
	// precondition ordering over limit_exceeded.
	require.NoError(t, lim.RecordVote("B"))
	err = lim.RecordVote("A")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDuplicateVote))
}

func TestQueriesAreIdempotent(t *testing.T) {
	lim, _, _ := newTestLimiter(t)

	require.NoError(t, lim.RecordVote("A"))

	for i := 0; i < 5; i++ {
		assert.False(t, lim.CanVoteFor("A"))
		assert.True(t, lim.CanVoteFor("B"))
		assert.Equal(t, DailyLimit-1, lim.VotesRemaining())
	}
}

func TestConcreteScenario(t *testing.T) {
	lim, clock, _ := newTestLimiter(t)
	voteATime := clock.Now()

	require.NoError(t, lim.RecordVote("A"))
	assert.Equal(t, 1, lim.VotesRemaining())

	err := lim.RecordVote("A")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDuplicateVote))
	assert.Equal(t, 1, lim.VotesRemaining())

	require.NoError(t, lim.RecordVote("B"))
	assert.Equal(t, 0, lim.VotesRemaining())

	err = lim.RecordVote("C")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLimitExceeded))

	next := apperrors.NextAvailableAt(err)
	require.NotNil(t, next, "limit_exceeded must carry next_available_at")
	assert.WithinDuration(t, voteATime.Add(Window), *next, time.Millisecond)

	// 24h + 1m later both the quota and item A free up again
	clock.Advance(Window + time.Minute)
	assert.Equal(t, DailyLimit, lim.VotesRemaining())
	assert.True(t, lim.CanVoteFor("A"))
	assert.Nil(t, lim.NextAvailableAt())
}

func TestExpiryBoundary(t *testing.T) {
	lim, clock, _ := newTestLimiter(t)

	require.NoError(t, lim.RecordVote("A"))

	// One millisecond short of expiry the record still counts
	clock.Advance(Window - time.Millisecond)
	assert.False(t, lim.CanVoteFor("A"))
	assert.Equal(t, DailyLimit-1, lim.VotesRemaining())

	// At 24h + 1ms past cast the record is out of the window entirely
	clock.Advance(2 * time.Millisecond)
	assert.True(t, lim.CanVoteFor("A"))
	assert.Equal(t, DailyLimit, lim.VotesRemaining())
}

func TestNextAvailableAt_TracksOldestActiveVote(t *testing.T) {
	lim, clock, _ := newTestLimiter(t)

	assert.Nil(t, lim.NextAvailableAt(), "fresh client has no cooldown")

	firstCast := clock.Now()
	require.NoError(t, lim.RecordVote("A"))
	assert.Nil(t, lim.NextAvailableAt(), "capacity remains after one vote")

	clock.Advance(2 * time.Hour)
	require.NoError(t, lim.RecordVote("B"))

	next := lim.NextAvailableAt()
	require.NotNil(t, next)
	assert.WithinDuration(t, firstCast.Add(Window), *next, time.Millisecond,
		"cooldown ends when the oldest vote expires")
}

func TestLedgerRoundTrip(t *testing.T) {
	clock := newFakeClock()
	store := localstore.NewMemoryStore()

	lim := New(store, testLogger(), WithClock(clock.Now))
	require.NoError(t, lim.Start())
	require.NoError(t, lim.RecordVote("A"))
	require.NoError(t, lim.RecordVote("B"))
	lim.Stop()

	// Simulate a restart against the same store
	reloaded := New(store, testLogger(), WithClock(clock.Now))
	require.NoError(t, reloaded.Start())
	defer reloaded.Stop()

	assert.Equal(t, 0, reloaded.VotesRemaining())
	assert.False(t, reloaded.CanVoteFor("A"))
	assert.False(t, reloaded.CanVoteFor("B"))
	assert.True(t, reloaded.CanVoteFor("C"))
}

func TestLoadPrunesExpiredRecords(t *testing.T) {
	clock := newFakeClock()
	store := localstore.NewMemoryStore()

	stale := []domain.VoteRecord{
		domain.NewVoteRecord("old", clock.Now().Add(-Window-time.Millisecond)),
		domain.NewVoteRecord("recent", clock.Now().Add(-time.Hour)),
	}
	raw, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, store.Set(StorageKey, raw))

	lim := New(store, testLogger(), WithClock(clock.Now))
	require.NoError(t, lim.Start())
	defer lim.Stop()

	assert.True(t, lim.CanVoteFor("old"), "expired record must not trigger a duplicate rejection")
	assert.Equal(t, DailyLimit-1, lim.VotesRemaining(), "expired record must not count toward the quota")

	// Start rewrites the filtered ledger back to storage
	persisted, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	var records []domain.VoteRecord
	require.NoError(t, json.Unmarshal(persisted, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "recent", records[0].PerformanceID)
}

func TestCorruptStorageYieldsEmptyLedger(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not JSON", raw: "definitely not json{"},
		{name: "wrong shape", raw: `{"performanceId":"A"}`},
		{name: "wrong element type", raw: `[{"performanceId":1,"timestamp":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := localstore.NewMemoryStore()
			require.NoError(t, store.Set(StorageKey, []byte(tt.raw)))

			lim := New(store, testLogger(), WithClock(newFakeClock().Now))
			require.NoError(t, lim.Start(), "corrupt history must never fail startup")
			defer lim.Stop()

			assert.Equal(t, DailyLimit, lim.VotesRemaining())
		})
	}
}

func TestStorageFailuresDegradeSilently(t *testing.T) {
	store := localstore.NewMemoryStore()
	store.FailReads = errors.New("storage unavailable")
	store.FailWrites = errors.New("storage unavailable")

	lim := New(store, testLogger(), WithClock(newFakeClock().Now))
	require.NoError(t, lim.Start(), "storage failure must never fail startup")
	defer lim.Stop()

	// Admission still works in memory; the broken store just means history
	// will not survive a restart.
	assert.Equal(t, DailyLimit, lim.VotesRemaining())
	assert.NoError(t, lim.RecordVote("A"))
	assert.False(t, lim.CanVoteFor("A"))
}

func TestSweepRecoversCapacityAndStorage(t *testing.T) {
	clock := newFakeClock()
	store := localstore.NewMemoryStore()

	lim := New(store, testLogger(), WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	require.NoError(t, lim.Start())
	defer lim.Stop()

	require.NoError(t, lim.RecordVote("A"))
	require.NoError(t, lim.RecordVote("B"))
	require.Equal(t, 0, lim.VotesRemaining())

	clock.Advance(Window + time.Minute)

	// The sweep rewrites storage without any user action
	assert.Eventually(t, func() bool {
		raw, ok, err := store.Get(StorageKey)
		if err != nil || !ok {
			return false
		}
		var records []domain.VoteRecord
		return json.Unmarshal(raw, &records) == nil && len(records) == 0
	}, time.Second, 5*time.Millisecond, "sweep should prune expired records from storage")

	assert.Equal(t, DailyLimit, lim.VotesRemaining())
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	store := localstore.NewMemoryStore()
	lim := New(store, testLogger())

	require.NoError(t, lim.Start())
	require.NoError(t, lim.Start())

	lim.Stop()
	lim.Stop()
}

func TestRestartLifecycle(t *testing.T) {
	clock := newFakeClock()
	store := localstore.NewMemoryStore()
	lim := New(store, testLogger(), WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))

	require.NoError(t, lim.Start())
	require.NoError(t, lim.RecordVote("A"))
	lim.Stop()

	// A stopped limiter can be started again against the same history
	require.NoError(t, lim.Start())
	assert.False(t, lim.CanVoteFor("A"))

	// The sweep must be alive after the restart: expired records still get
	// pruned from storage without user action.
	clock.Advance(Window + time.Minute)
	assert.Eventually(t, func() bool {
		raw, ok, err := store.Get(StorageKey)
		if err != nil || !ok {
			return false
		}
		var records []domain.VoteRecord
		return json.Unmarshal(raw, &records) == nil && len(records) == 0
	}, time.Second, 5*time.Millisecond, "sweep should keep pruning after a restart")

	// Stopping again (twice) must not panic
	lim.Stop()
	lim.Stop()
}

func TestCanVoteForBeforeStart(t *testing.T) {
	lim := New(localstore.NewMemoryStore(), testLogger())

	// Vacuously true on a not-yet-loaded ledger
	assert.True(t, lim.CanVoteFor("A"))
	assert.Equal(t, DailyLimit, lim.VotesRemaining())
}

func TestEmptyItemIDIsOpaque(t *testing.T) {
	lim, _, _ := newTestLimiter(t)

	// IDs are opaque tokens, never validated
	require.NoError(t, lim.RecordVote(""))
	err := lim.RecordVote("")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDuplicateVote))
}
