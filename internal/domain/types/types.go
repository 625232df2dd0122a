// Package types contains common types used across the application
package types

// Entry represents a leaderboard row exposed to readers.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}
