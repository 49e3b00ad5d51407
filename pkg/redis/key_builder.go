package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyPerformanceVotes returns the tally counter key for a performance
func (kb *KeyBuilder) KeyPerformanceVotes(performanceID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPerformanceVotes, performanceID))
}

// KeyVotesLastUpdate returns the key tracking the last tally mutation
func (kb *KeyBuilder) KeyVotesLastUpdate() string {
	return kb.BuildKey(KeyVotesLastUpdate)
}
