package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"karaoke-client/internal/domain"
	"karaoke-client/internal/limiter"
	"karaoke-client/internal/tally"
	"karaoke-client/pkg/apperrors"
	"karaoke-client/pkg/logger"
)

// VotingService pairs the local admission gate with the remote tally: a vote
// is first admitted against the client's rolling quota, then forwarded as
// exactly one counter increment.
type VotingService struct {
	limiter *limiter.VoteLimiter
	tally   tally.Tally
	catalog tally.Catalog
	logger  *logger.Logger
	now     func() time.Time
}

// NewVotingService creates a voting service. The catalog may be served by
// the same backend as the tally (Postgres) or by a static listing (Redis).
func NewVotingService(lim *limiter.VoteLimiter, t tally.Tally, catalog tally.Catalog, log *logger.Logger) *VotingService {
	return &VotingService{
		limiter: lim,
		tally:   t,
		catalog: catalog,
		logger:  log,
		now:     time.Now,
	}
}

// CastVote admits a vote locally, then increments the remote tally. The two
// steps are not transactional: if the remote increment fails after local
// admission, the quota stays consumed and the error is surfaced to the
// caller — there is no compensating rollback.
func (s *VotingService) CastVote(ctx context.Context, performanceID string) (*domain.VoteReceipt, error) {
	if performanceID == "" {
		return nil, apperrors.NewValidationError("performance id is required", nil)
	}

	if err := s.limiter.RecordVote(performanceID); err != nil {
		return nil, err
	}

	total, err := s.tally.Increment(ctx, performanceID)
	if err != nil {
		s.logger.WithError(err).WithField("performance_id", performanceID).
			Error("Vote admitted locally but remote tally increment failed")
		return nil, apperrors.NewExternalError("failed to submit vote", err)
	}

	receipt := &domain.VoteReceipt{
		PerformanceID:  performanceID,
		Total:          total,
		VotesRemaining: s.limiter.VotesRemaining(),
		CastAt:         s.now(),
	}

	s.logger.WithFields(map[string]interface{}{
		"performance_id":  performanceID,
		"total":           total,
		"votes_remaining": receipt.VotesRemaining,
	}).Info("Vote submitted")

	return receipt, nil
}

// CanVoteFor reports whether the voting control for a performance should be
// enabled.
func (s *VotingService) CanVoteFor(performanceID string) bool {
	return s.limiter.CanVoteFor(performanceID)
}

// Status returns the client's current quota snapshot
func (s *VotingService) Status() domain.VoteStatus {
	return s.limiter.Status()
}

// Performances returns the catalog in its curated order, without tallies
func (s *VotingService) Performances(ctx context.Context) ([]domain.Performance, error) {
	performances, err := s.catalog.ListPerformances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load performances: %w", err)
	}
	return performances, nil
}

// Countdown returns all performances ranked by vote count, refreshed from
// the authoritative tally.
func (s *VotingService) Countdown(ctx context.Context) (*domain.Countdown, error) {
	performances, err := s.catalog.ListPerformances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load performances: %w", err)
	}

	ids := make([]string, len(performances))
	for i, p := range performances {
		ids[i] = p.ID
	}

	counts, err := s.tally.Counts(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote counts: %w", err)
	}

	var totalVotes int64
	for i := range performances {
		if n, ok := counts[performances[i].ID]; ok {
			performances[i].Votes = n
		}
		totalVotes += performances[i].Votes
	}

	sort.SliceStable(performances, func(i, j int) bool {
		return performances[i].Votes > performances[j].Votes
	})

	ranked := make([]domain.RankedPerformance, len(performances))
	for i, p := range performances {
		pct := 0.0
		if totalVotes > 0 {
			pct = float64(p.Votes) / float64(totalVotes) * 100
		}
		ranked[i] = domain.RankedPerformance{
			Performance: p,
			Rank:        i + 1,
			Percentage:  pct,
			IsWinner:    i == 0 && p.Votes > 0,
		}
	}

	return &domain.Countdown{
		Performances: ranked,
		TotalVotes:   totalVotes,
		LastUpdate:   s.now(),
	}, nil
}
