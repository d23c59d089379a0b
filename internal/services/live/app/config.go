package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/siu-labs/livegate/internal/platform/config"
	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/room"
)

// Config is the livegate runtime configuration, read from the environment.
type Config struct {
	HTTPAddr string `env:"LIVEGATE_HTTP_ADDR" envDefault:"localhost:8090"`
	GRPCAddr string `env:"LIVEGATE_GRPC_ADDR"`
	DBPath   string `env:"LIVEGATE_DB_PATH" envDefault:"data/livegate.db"`

	JWTSecret     string `env:"LIVE_JWT_SECRET"`
	Chain         string `env:"UNLOCK_CHAIN" envDefault:"mainnet"`
	RPCURL        string `env:"ETH_RPC_URL"`
	AllowManagers string `env:"UNLOCK_ALLOW_MANAGERS"`

	HuddleAPIKey  string `env:"HUDDLE_API_KEY"`
	HuddleAPIBase string `env:"HUDDLE_API_BASE" envDefault:"https://api.huddle01.com/api/v1"`

	RedisAddr        string        `env:"LIVEGATE_REDIS_ADDR"`
	RedisPassword    string        `env:"LIVEGATE_REDIS_PASSWORD"`
	DecisionCacheTTL time.Duration `env:"LIVEGATE_DECISION_CACHE_TTL"`
	RateLimit        int           `env:"LIVEGATE_RATE_LIMIT"`
	RateWindow       time.Duration `env:"LIVEGATE_RATE_WINDOW" envDefault:"1m"`
	RevocationSweep  time.Duration `env:"LIVEGATE_REVOCATION_SWEEP" envDefault:"5m"`
}

// LoadConfig reads Config through lookup; nil uses the process environment.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := config.ParseEnvWith(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ManagersAllowed reports whether UNLOCK_ALLOW_MANAGERS enables the bypass.
func (c Config) ManagersAllowed() bool {
	return config.IsTrue(c.AllowManagers)
}

// Validate rejects values the runtime cannot start with. A missing secret or
// API key is not fatal here: those requests fail individually.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("LIVEGATE_HTTP_ADDR is required")
	}
	if c.DecisionCacheTTL < 0 {
		return fmt.Errorf("LIVEGATE_DECISION_CACHE_TTL must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("LIVEGATE_RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return fmt.Errorf("LIVEGATE_RATE_WINDOW must be positive when a rate limit is set")
	}
	if c.RateLimit > 0 && c.RateWindow < time.Duration(c.RateLimit) {
		return fmt.Errorf("LIVEGATE_RATE_WINDOW must be at least %dns for a limit of %d", c.RateLimit, c.RateLimit)
	}
	return nil
}

func (c Config) checkerConfig() chain.Config {
	return chain.Config{Chain: c.Chain, RPCURL: c.RPCURL, AllowManagers: c.ManagersAllowed()}
}

func (c Config) huddleConfig() room.HuddleConfig {
	return room.HuddleConfig{APIKey: c.HuddleAPIKey, APIBase: c.HuddleAPIBase}
}
