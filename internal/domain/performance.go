package domain

import "time"

// Performance represents one uploaded karaoke performance
type Performance struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	UploaderName string    `json:"uploader_name"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Votes        int64     `json:"votes"`
	CreatedAt    time.Time `json:"created_at"`
}

// RankedPerformance is a performance with its countdown position
type RankedPerformance struct {
	Performance
	Rank       int     `json:"rank"`
	Percentage float64 `json:"percentage"`
	IsWinner   bool    `json:"is_winner"`
}

// Countdown is the full ranked listing, highest vote count first
type Countdown struct {
	Performances []RankedPerformance `json:"performances"`
	TotalVotes   int64               `json:"total_votes"`
	LastUpdate   time.Time           `json:"last_update"`
}

// VoteStatus is what the UI layer needs to render voting controls for
// one client: remaining quota and, when exhausted, the cooldown horizon.
type VoteStatus struct {
	VotesRemaining  int        `json:"votes_remaining"`
	DailyLimit      int        `json:"daily_limit"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`
}
