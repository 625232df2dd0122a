package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if TALLY_CONFIG is set
//  3. env (prefix TALLY_)
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("TALLY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TALLY_ADDR, TALLY_QUEUE_SIZE, ...
	// Map env keys like TALLY_QUEUE_SIZE -> queue_size (flat keys); a double
	// underscore descends into nested sections, e.g. TALLY_TWITCH__CHANNEL.
	envProvider := env.Provider("TALLY_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "tally_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with. Failing here
// at startup beats discovering a bad weight mid-tally.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("%w: threshold must be in [0,100], got %d", ErrInvalidConfig, c.Threshold)
	}
	if c.NormalWeight <= 0 || c.SuperWeight <= 0 || c.UltraWeight <= 0 {
		return fmt.Errorf("%w: vote weights must be positive", ErrInvalidConfig)
	}
	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("%w: sync_interval_seconds must be positive, got %d", ErrInvalidConfig, c.SyncIntervalSeconds)
	}
	if c.SyncMaxRetries < 0 {
		return fmt.Errorf("%w: sync_max_retries must not be negative, got %d", ErrInvalidConfig, c.SyncMaxRetries)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("%w: cache_ttl_seconds must be positive, got %d", ErrInvalidConfig, c.CacheTTLSeconds)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.EventQueueSize)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive, got %d", ErrInvalidConfig, c.MaxLeaderboardLimit)
	}
	if c.Twitch.ClientID != "" && c.Twitch.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: twitch.poll_interval_seconds must be positive, got %d", ErrInvalidConfig, c.Twitch.PollIntervalSeconds)
	}
	return nil
}
