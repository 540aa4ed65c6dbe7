// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/sectify/streamvault/internal/cipher"
	"github.com/sectify/streamvault/internal/errs"
)

// Config holds every environment-derived setting this module's components
// need. It is read once at startup via Load; components never read the
// environment themselves.
type Config struct {
	// MasterSecret derives every per-track key and HMAC key (C1-C3).
	MasterSecret string
	// DefaultMode is the PerformanceMode used when a caller does not pick
	// one explicitly; C2/C3 never read this themselves.
	DefaultMode cipher.PerformanceMode
	// RedisURL, if non-empty, selects the Redis-backed store; empty means
	// the in-memory store.
	RedisURL string
	// SecretKey signs session ids and processing-lock process ids.
	SecretKey string
	// Algorithm names the JWT signing algorithm for C7 url tokens.
	Algorithm string
	// AccessTokenExpire is the token lifetime read from
	// ACCESS_TOKEN_EXPIRE_MINUTES. authz access-grant tokens do not use it:
	// they always expire after 30 minutes.
	AccessTokenExpire time.Duration
	// IsProduction gates the Fast+production hard-reject rule.
	IsProduction bool

	// MaxSessionsPerUser bounds concurrent sessions per user (C6).
	MaxSessionsPerUser int
	// MaxConcurrentPerUser bounds concurrent processing locks per user (C8).
	MaxConcurrentPerUser int
	// MaxWaitSeconds bounds how long lock.Manager.Acquire waits on a busy
	// per-track mutex before failing with Timeout.
	MaxWaitSeconds int

	// HLSSweepInterval is how often the HLS sweeper checks for aged
	// segments (C9).
	HLSSweepInterval time.Duration
	// HLSSweepAge is how old a segment must be before it is deleted (C9).
	HLSSweepAge time.Duration
}

// Load reads Config from the environment, applying the same defaults the
// reference implementation used.
func Load() (*Config, error) {
	mode := cipher.ParsePerformanceMode(ParseString("CHAOTIC_PERFORMANCE_MODE", "balanced"))

	cfg := &Config{
		MasterSecret:         ParseString("SECTIFY_MASTER_SECRET", ""),
		DefaultMode:          mode,
		RedisURL:             ParseString("REDIS_URL", ""),
		SecretKey:            ParseString("SECRET_KEY", ""),
		Algorithm:            ParseString("ALGORITHM", "HS256"),
		AccessTokenExpire:    time.Duration(ParseInt("ACCESS_TOKEN_EXPIRE_MINUTES", 2)) * time.Minute,
		IsProduction:         ParseBool("IS_PRODUCTION", false),
		MaxSessionsPerUser:   ParseInt("max_sessions_per_user", 5),
		MaxConcurrentPerUser: ParseInt("max_concurrent_per_user", 3),
		MaxWaitSeconds:       ParseInt("max_wait_seconds", 60),
		HLSSweepInterval:     ParseDuration("hls_sweep_interval", 2*time.Minute),
		HLSSweepAge:          ParseDuration("hls_sweep_age", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the one hard MUST from the source spec's open
// questions: Fast performance mode may never run in production, because
// its reduced transient length and PBKDF2 iteration count make it
// unsuitable for protecting data at rest outside of local development.
func (c *Config) Validate() error {
	if c.IsProduction && c.DefaultMode == cipher.Fast {
		return errs.New(errs.Validation, "CHAOTIC_PERFORMANCE_MODE=fast is not permitted when IS_PRODUCTION is true")
	}
	if c.MasterSecret == "" {
		return errs.New(errs.Validation, "SECTIFY_MASTER_SECRET must be set")
	}
	return nil
}
