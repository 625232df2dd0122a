// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. ":memory:" keeps the tally ephemeral.
	DBPath string `koanf:"db_path"`

	// Threshold is the minimum fuzzy-match confidence (0-100) for a raw
	// label to resolve against the catalog.
	Threshold int `koanf:"threshold"`

	// NormalWeight, SuperWeight and UltraWeight are the per-tier vote weights.
	NormalWeight int `koanf:"normal_weight"`
	SuperWeight  int `koanf:"super_weight"`
	UltraWeight  int `koanf:"ultra_weight"`

	// CacheTTLSeconds bounds how long the resolver's name snapshot is reused.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// SyncIntervalSeconds is the replication cycle period.
	SyncIntervalSeconds int `koanf:"sync_interval_seconds"`

	// SyncMaxRetries bounds push retries within one replication cycle.
	SyncMaxRetries int `koanf:"sync_max_retries"`

	// EventQueueSize bounds the in-memory vote queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of admission workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the in-memory deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// CreateMissing lets manual votes create catalog entries on the fly.
	CreateMissing bool `koanf:"create_missing"`

	// Twitch configures the channel-point redemption source.
	Twitch TwitchConfig `koanf:"twitch"`

	// Sheet configures the external spreadsheet view.
	Sheet SheetConfig `koanf:"sheet"`
}

// TwitchConfig holds the redemption source settings. Empty ClientID disables
// the source entirely.
type TwitchConfig struct {
	ClientID      string `koanf:"client_id"`
	Token         string `koanf:"token"`
	BroadcasterID string `koanf:"broadcaster_id"`
	Channel       string `koanf:"channel"`

	// NormalRewardID, SuperRewardID and UltraRewardID map custom rewards to
	// vote tiers.
	NormalRewardID string `koanf:"normal_reward_id"`
	SuperRewardID  string `koanf:"super_reward_id"`
	UltraRewardID  string `koanf:"ultra_reward_id"`

	// PollIntervalSeconds is the redemption poll period.
	PollIntervalSeconds int `koanf:"poll_interval_seconds"`
}

// SheetConfig holds the spreadsheet view settings. Empty SpreadsheetID
// disables mirroring.
type SheetConfig struct {
	SpreadsheetID string `koanf:"spreadsheet_id"`
	SheetName     string `koanf:"sheet_name"`
	Token         string `koanf:"token"`
}

// SyncInterval returns the replication period as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// CacheTTL returns the resolver cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBPath:              "tally.db",
		Threshold:           80,
		NormalWeight:        1,
		SuperWeight:         10,
		UltraWeight:         25,
		CacheTTLSeconds:     300,
		SyncIntervalSeconds: 5,
		SyncMaxRetries:      3,
		EventQueueSize:      10_000,
		WorkerCount:         4,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		CreateMissing:       true,
		Twitch: TwitchConfig{
			PollIntervalSeconds: 2,
		},
		Sheet: SheetConfig{
			SheetName: "Sheet1",
		},
	}
}
