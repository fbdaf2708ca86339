package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr           string `env:"ADDR" envDefault:":8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	CountdownSec   int    `env:"COUNTDOWN_SECONDS" envDefault:"5"`
	ResultResetSec int    `env:"RESULT_RESET_SECONDS" envDefault:"5"`

	// BroadcastRelay selects an optional external relay next to the
	// in-process fan-out: "none", "redis" or "nats".
	BroadcastRelay string `env:"BROADCAST_RELAY" envDefault:"none"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	NATSURL        string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env config: %w", err)
	}
	return cfg, nil
}
