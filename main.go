package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"karaoke-client/internal/config"
	"karaoke-client/internal/identity"
	"karaoke-client/internal/limiter"
	"karaoke-client/internal/localstore"
	"karaoke-client/internal/service"
	"karaoke-client/internal/tally"
	"karaoke-client/internal/tally/pgtally"
	"karaoke-client/internal/tally/redistally"
	"karaoke-client/pkg/apperrors"
	"karaoke-client/pkg/database"
	"karaoke-client/pkg/logger"
	"karaoke-client/pkg/redis"
)

const usage = `Usage: karaoke-client <command>

Commands:
  status              show remaining votes and cooldown
  vote <id>           cast a vote for a performance
  performances        list the performances open for voting
  countdown           show performances ranked by vote count
`

func main() {
	os.Exit(run())
}

// run carries the whole command lifecycle so deferred cleanup (limiter stop,
// backend close) executes on every exit path, including failures.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return 1
	}

	if len(os.Args) < 2 {
		fmt.Print(usage)
		return 1
	}
	command := os.Args[1]

	// Local history is best effort: a broken ledger file degrades to an
	// in-memory store for this run, it never blocks the command.
	var store localstore.Store
	fileStore, err := localstore.NewFileStore(cfg.LedgerPath)
	if err != nil {
		log.WithError(err).Warn("Local ledger unavailable, vote history will not survive this run")
		store = localstore.NewMemoryStore()
	} else {
		store = fileStore
	}

	log = log.WithField("client_id", identity.ClientID(store))

	lim := limiter.New(store, log, limiter.WithSweepInterval(cfg.SweepInterval))
	if err := lim.Start(); err != nil {
		log.WithError(err).Error("Failed to start vote limiter")
		return 1
	}
	defer lim.Stop()

	ctx := context.Background()

	switch command {
	case "status":
		runStatus(lim)
		return 0

	case "vote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: karaoke-client vote <performance-id>")
			return 1
		}
		svc, cleanup, err := buildService(ctx, cfg, lim, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize tally backend")
			return 1
		}
		defer cleanup()
		return runVote(ctx, svc, os.Args[2])

	case "performances":
		svc, cleanup, err := buildService(ctx, cfg, lim, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize tally backend")
			return 1
		}
		defer cleanup()
		return runPerformances(ctx, svc)

	case "countdown":
		svc, cleanup, err := buildService(ctx, cfg, lim, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize tally backend")
			return 1
		}
		defer cleanup()
		return runCountdown(ctx, svc)

	default:
		fmt.Print(usage)
		return 1
	}
}

// buildService wires the voting service against the configured tally
// backend. Postgres doubles as the performance catalog; Redis carries
// counters only, so the catalog falls back to the static lineup. The
// returned cleanup health-checks the connection before closing it.
func buildService(ctx context.Context, cfg *config.Config, lim *limiter.VoteLimiter, log *logger.Logger) (*service.VotingService, func(), error) {
	switch cfg.TallyBackend {
	case "postgres":
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		pg := pgtally.New(db)
		cleanup := func() {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := db.Health(healthCtx); err != nil {
				log.WithError(err).Warn("Database health check failed before closing")
			}
			db.Close()
		}
		return service.NewVotingService(lim, pg, pg, log), cleanup, nil

	case "redis":
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to Redis: %w", err)
		}
		cleanup := func() {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := client.Health(healthCtx); err != nil {
				log.WithError(err).Warn("Redis health check failed before closing")
			}
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close Redis connection")
			}
		}
		return service.NewVotingService(lim, redistally.New(client), tally.DefaultCatalog(), log), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown tally backend %q (want redis or postgres)", cfg.TallyBackend)
	}
}

func runStatus(lim *limiter.VoteLimiter) {
	status := lim.Status()
	fmt.Printf("Votes remaining: %d of %d\n", status.VotesRemaining, status.DailyLimit)
	if status.NextAvailableAt != nil {
		fmt.Printf("Next vote available in %s\n", limiter.FormatUntil(time.Now(), *status.NextAvailableAt))
	}
}

func runVote(ctx context.Context, svc *service.VotingService, performanceID string) int {
	receipt, err := svc.CastVote(ctx, performanceID)
	if err != nil {
		printVoteError(err)
		return 1
	}

	fmt.Printf("Vote recorded! %s now has %d votes.\n", receipt.PerformanceID, receipt.Total)
	fmt.Printf("Votes remaining today: %d\n", receipt.VotesRemaining)
	return 0
}

// printVoteError keeps the two rejection reasons distinct so the user knows
// why voting is blocked and when it frees up.
func printVoteError(err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		fmt.Printf("Voting failed: %v\n", err)
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeDuplicateVote:
		fmt.Println("You have already voted for this performance today.")
	case apperrors.ErrorTypeLimitExceeded:
		msg := fmt.Sprintf("Vote limit reached (%d per day).", limiter.DailyLimit)
		if next := apperrors.NextAvailableAt(err); next != nil {
			msg += fmt.Sprintf(" Available in %s.", limiter.FormatUntil(time.Now(), *next))
		} else {
			msg += " Try again tomorrow."
		}
		fmt.Println(msg)
	case apperrors.ErrorTypeExternal:
		fmt.Println("Your vote was recorded locally but could not reach the vote server. It will not be retried.")
	default:
		fmt.Printf("Voting failed: %s\n", appErr.Message)
	}
}

func runPerformances(ctx context.Context, svc *service.VotingService) int {
	performances, err := svc.Performances(ctx)
	if err != nil {
		fmt.Printf("Failed to load performances: %v\n", err)
		return 1
	}

	fmt.Println("Performances open for voting:")
	for _, p := range performances {
		votable := " "
		if !svc.CanVoteFor(p.ID) {
			votable = "voted"
		}
		fmt.Printf("  %-4s %-40s %-12s %s %s\n", p.ID, p.Title, p.UploaderName, p.URL, votable)
	}
	return 0
}

func runCountdown(ctx context.Context, svc *service.VotingService) int {
	countdown, err := svc.Countdown(ctx)
	if err != nil {
		fmt.Printf("Failed to load countdown: %v\n", err)
		return 1
	}

	fmt.Printf("Karaoke Countdown (%d votes cast)\n\n", countdown.TotalVotes)
	for _, p := range countdown.Performances {
		marker := "  "
		if p.IsWinner {
			marker = "★ "
		}
		fmt.Printf("%s%2d. %-40s %-12s %5d votes (%.1f%%)\n",
			marker, p.Rank, p.Title, p.UploaderName, p.Votes, p.Percentage)
	}
	return 0
}
