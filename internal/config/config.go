package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL,required"`
	RedisURL                 string `env:"REDIS_URL,required"`
	OTPLength                int    `env:"OTP_LENGTH" envDefault:"6"`
	OTPExpiryMinutes         int    `env:"OTP_EXPIRY_MINUTES" envDefault:"5"`
	StreamTimeoutMinutes     int    `env:"SSE_TIMEOUT_MINUTES" envDefault:"30"`
	KeepaliveIntervalSeconds int    `env:"SSE_KEEPALIVE_INTERVAL_SECONDS" envDefault:"30"`
	DisconnectGraceMillis    int    `env:"DISCONNECT_GRACE_MILLIS" envDefault:"100"`
	OTPRateLimitPerMin       int    `env:"OTP_RATE_LIMIT_PER_MIN" envDefault:"10"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) OTPExpiry() time.Duration {
	return time.Duration(c.OTPExpiryMinutes) * time.Minute
}

func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutMinutes) * time.Minute
}

func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.KeepaliveIntervalSeconds) * time.Second
}

func (c *Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceMillis) * time.Millisecond
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
