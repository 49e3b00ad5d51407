package tally

import (
	"context"

	"karaoke-client/internal/domain"
)

// StaticCatalog serves a fixed performance list. It backs the countdown when
// only a counter backend (no relational catalog) is configured.
type StaticCatalog struct {
	performances []domain.Performance
}

// NewStaticCatalog creates a catalog over the given performances
func NewStaticCatalog(performances []domain.Performance) *StaticCatalog {
	return &StaticCatalog{performances: performances}
}

// ListPerformances returns a copy of the configured performances
func (c *StaticCatalog) ListPerformances(ctx context.Context) ([]domain.Performance, error) {
	out := make([]domain.Performance, len(c.performances))
	copy(out, c.performances)
	return out, nil
}

// DefaultCatalog returns the demo performance lineup used before an
// administrator seeds real entries.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog([]domain.Performance{
		{ID: "1", Title: "Electric Slide Karaoke Performance", URL: "https://example.com/video1.mp4", UploaderName: "Jane123"},
		{ID: "2", Title: "Single Ladies Cover", URL: "https://example.com/video2.mp4", UploaderName: "John456"},
		{ID: "3", Title: "YMCA Group Performance", URL: "https://example.com/video3.mp4", UploaderName: "DanceTeam"},
		{ID: "4", Title: "Macarena Cover", URL: "https://example.com/video4.mp4", UploaderName: "Party789"},
	})
}
