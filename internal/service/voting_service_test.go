package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"karaoke-client/internal/domain"
	"karaoke-client/internal/limiter"
	"karaoke-client/internal/localstore"
	"karaoke-client/internal/tally"
	"karaoke-client/pkg/apperrors"
	"karaoke-client/pkg/logger"
)

// fakeTally is a scripted in-memory tally backend
type fakeTally struct {
	counts     map[string]int64
	increments int
	failNext   error
}

func newFakeTally() *fakeTally {
	return &fakeTally{counts: make(map[string]int64)}
}

func (f *fakeTally) Increment(ctx context.Context, performanceID string) (int64, error) {
	f.increments++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, err
	}
	f.counts[performanceID]++
	return f.counts[performanceID], nil
}

func (f *fakeTally) Counts(ctx context.Context, performanceIDs ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(performanceIDs))
	for _, id := range performanceIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestService(t *testing.T) (*VotingService, *fakeTally, *limiter.VoteLimiter) {
	t.Helper()

	lim := limiter.New(localstore.NewMemoryStore(), testLogger())
	require.NoError(t, lim.Start())
	t.Cleanup(lim.Stop)

	ft := newFakeTally()
	svc := NewVotingService(lim, ft, tally.DefaultCatalog(), testLogger())
	return svc, ft, lim
}

func TestCastVote_Success(t *testing.T) {
	svc, ft, _ := newTestService(t)

	receipt, err := svc.CastVote(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, "1", receipt.PerformanceID)
	assert.Equal(t, int64(1), receipt.Total)
	assert.Equal(t, limiter.DailyLimit-1, receipt.VotesRemaining)
	assert.Equal(t, 1, ft.increments, "exactly one remote increment per admitted vote")
}

func TestCastVote_DuplicateNeverReachesTally(t *testing.T) {
	svc, ft, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, "1")
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, "1")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDuplicateVote))
	assert.Equal(t, 1, ft.increments, "rejected votes must not increment the remote tally")
	assert.Equal(t, int64(1), ft.counts["1"], "tally must not double-count")
}

func TestCastVote_LimitExceededNeverReachesTally(t *testing.T) {
	svc, ft, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, "1")
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "2")
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, "3")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLimitExceeded))
	assert.NotNil(t, apperrors.NextAvailableAt(err))
	assert.Equal(t, 2, ft.increments)
}

func TestCastVote_RemoteFailureIsNotRolledBack(t *testing.T) {
	svc, ft, lim := newTestService(t)
	ft.failNext = errors.New("tally unreachable")

	_, err := svc.CastVote(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))

	// The local admission record stays: quota is consumed and the item is
	// treated as voted-for even though the remote tally never moved.
	assert.Equal(t, limiter.DailyLimit-1, lim.VotesRemaining())
	assert.False(t, svc.CanVoteFor("1"))
	assert.Equal(t, int64(0), ft.counts["1"])
}

func TestCastVote_EmptyIDRejected(t *testing.T) {
	svc, ft, _ := newTestService(t)

	_, err := svc.CastVote(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Zero(t, ft.increments)
}

func TestCountdown_RanksByVotes(t *testing.T) {
	svc, ft, _ := newTestService(t)

	// Seed counts out of catalog order
	ft.counts["3"] = 32
	ft.counts["1"] = 25
	ft.counts["2"] = 18
	ft.counts["4"] = 14

	countdown, err := svc.Countdown(context.Background())
	require.NoError(t, err)

	require.Len(t, countdown.Performances, 4)
	assert.Equal(t, int64(89), countdown.TotalVotes)

	var order []string
	for _, p := range countdown.Performances {
		order = append(order, p.ID)
	}
	assert.Equal(t, []string{"3", "1", "2", "4"}, order)

	top := countdown.Performances[0]
	assert.Equal(t, 1, top.Rank)
	assert.True(t, top.IsWinner)
	assert.InDelta(t, 35.96, top.Percentage, 0.01)

	last := countdown.Performances[3]
	assert.Equal(t, 4, last.Rank)
	assert.False(t, last.IsWinner)
}

func TestCountdown_NoVotes(t *testing.T) {
	svc, _, _ := newTestService(t)

	countdown, err := svc.Countdown(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), countdown.TotalVotes)
	for _, p := range countdown.Performances {
		assert.False(t, p.IsWinner, "nobody wins a countdown with zero votes")
		assert.Zero(t, p.Percentage)
	}
}

func TestCountdown_CatalogError(t *testing.T) {
	lim := limiter.New(localstore.NewMemoryStore(), testLogger())
	require.NoError(t, lim.Start())
	t.Cleanup(lim.Stop)

	svc := NewVotingService(lim, newFakeTally(), failingCatalog{}, testLogger())

	_, err := svc.Countdown(context.Background())
	assert.Error(t, err)
}

type failingCatalog struct{}

func (failingCatalog) ListPerformances(ctx context.Context) ([]domain.Performance, error) {
	return nil, errors.New("catalog unavailable")
}

func TestPerformances_CatalogOrder(t *testing.T) {
	svc, ft, _ := newTestService(t)
	ft.counts["4"] = 99

	performances, err := svc.Performances(context.Background())
	require.NoError(t, err)
	require.Len(t, performances, 4)

	// Catalog order, untouched by tallies
	var ids []string
	for _, p := range performances {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestPerformances_CatalogError(t *testing.T) {
	lim := limiter.New(localstore.NewMemoryStore(), testLogger())
	require.NoError(t, lim.Start())
	t.Cleanup(lim.Stop)

	svc := NewVotingService(lim, newFakeTally(), failingCatalog{}, testLogger())

	_, err := svc.Performances(context.Background())
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	svc, _, _ := newTestService(t)

	status := svc.Status()
	assert.Equal(t, limiter.DailyLimit, status.VotesRemaining)
	assert.Equal(t, limiter.DailyLimit, status.DailyLimit)
	assert.Nil(t, status.NextAvailableAt)
}
