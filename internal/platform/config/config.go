package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the service. Offer
// parameters are read once at boot and immutable for the process lifetime.
type Config struct {
	Addr          string
	JWTSigningKey string

	// Offer parameters
	CustodianAccount string
	TargetAmount     uint64
	MinFund          uint64
	MaxFund          uint64
	InterestPercent  uint64
	MinSubscribe     time.Duration

	// Empty URLs disable the corresponding backend: the ledger and treasury
	// fall back to memory stores, notices skip the Redis sink.
	PostgresURL   string
	RedisURL      string
	NoticeChannel string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:             envOr("CROWDVAULT_ADDR", ":8080"),
		JWTSigningKey:    envOr("CROWDVAULT_JWT_KEY", "dev-secret-key-change-in-production"),
		CustodianAccount: envOr("CROWDVAULT_CUSTODIAN", "custodian"),
		PostgresURL:      os.Getenv("CROWDVAULT_POSTGRES_URL"),
		RedisURL:         os.Getenv("CROWDVAULT_REDIS_URL"),
		NoticeChannel:    envOr("CROWDVAULT_NOTICE_CHANNEL", "crowdvault.notices"),
	}

	var err error
	if cfg.TargetAmount, err = envUint("CROWDVAULT_TARGET", 1000); err != nil {
		return Config{}, err
	}
	if cfg.MinFund, err = envUint("CROWDVAULT_MIN_FUND", 100); err != nil {
		return Config{}, err
	}
	if cfg.MaxFund, err = envUint("CROWDVAULT_MAX_FUND", 500); err != nil {
		return Config{}, err
	}
	if cfg.InterestPercent, err = envUint("CROWDVAULT_INTEREST_PERCENT", 10); err != nil {
		return Config{}, err
	}

	minSubscribe := envOr("CROWDVAULT_MIN_SUBSCRIBE", "24h")
	cfg.MinSubscribe, err = time.ParseDuration(minSubscribe)
	if err != nil {
		return Config{}, fmt.Errorf("parse CROWDVAULT_MIN_SUBSCRIBE: %w", err)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
