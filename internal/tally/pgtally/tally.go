// Package pgtally implements the tally contract on PostgreSQL: the counter
// lives in the performances table and increments ride a single UPDATE, so
// they are atomic without explicit locking. The same table doubles as the
// performance catalog.
package pgtally

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"karaoke-client/internal/domain"
	"karaoke-client/pkg/database"
)

// Tally counts votes in the performances table
type Tally struct {
	db *database.PostgresDB
}

// New creates a Postgres-backed tally
func New(db *database.PostgresDB) *Tally {
	return &Tally{db: db}
}

// Increment atomically adds one to the performance's vote count
func (t *Tally) Increment(ctx context.Context, performanceID string) (int64, error) {
	query := `
		UPDATE performances
		SET votes = votes + 1
		WHERE id = $1
		RETURNING votes
	`

	var total int64
	err := t.db.Pool.QueryRow(ctx, query, performanceID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("performance %s not found", performanceID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment vote count: %w", err)
	}

	return total, nil
}

// Counts fetches the current counters for the given performances. Unknown
// IDs are returned with a zero count.
func (t *Tally) Counts(ctx context.Context, performanceIDs ...string) (map[string]int64, error) {
	counts := make(map[string]int64, len(performanceIDs))
	if len(performanceIDs) == 0 {
		return counts, nil
	}
	for _, id := range performanceIDs {
		counts[id] = 0
	}

	query := `SELECT id, votes FROM performances WHERE id = ANY($1)`

	rows, err := t.db.Pool.Query(ctx, query, performanceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vote counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var votes int64
		if err := rows.Scan(&id, &votes); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[id] = votes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vote counts: %w", err)
	}

	return counts, nil
}

// ListPerformances returns the full catalog, highest vote count first
func (t *Tally) ListPerformances(ctx context.Context) ([]domain.Performance, error) {
	query := `
		SELECT id, title, url, uploader_name, COALESCE(photo_url, ''), votes, created_at
		FROM performances
		ORDER BY votes DESC, created_at ASC
	`

	rows, err := t.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list performances: %w", err)
	}
	defer rows.Close()

	var performances []domain.Performance
	for rows.Next() {
		var p domain.Performance
		if err := rows.Scan(&p.ID, &p.Title, &p.URL, &p.UploaderName, &p.PhotoURL, &p.Votes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan performance: %w", err)
		}
		performances = append(performances, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read performances: %w", err)
	}

	return performances, nil
}
