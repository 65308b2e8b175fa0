package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL,required"`
	ClaimSecret       string `env:"CLAIM_SECRET,required"`
	PairingTTLSeconds int    `env:"PAIRING_TTL_SECONDS" envDefault:"300"`
	VoiceDir          string `env:"VOICE_DIR" envDefault:"data/voice"`
	VoiceMaxBytes     int64  `env:"VOICE_MAX_BYTES" envDefault:"10485760"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	RateLimitPerMin   int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if len(c.ClaimSecret) < 32 {
		return fmt.Errorf("CLAIM_SECRET must be at least 32 characters (generate with: openssl rand -base64 32)")
	}
	if c.PairingTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
