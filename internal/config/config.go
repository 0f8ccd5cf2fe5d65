package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	DevMode         bool   `env:"DEV_MODE" envDefault:"true"`
	DevGuildID      string `env:"DEV_GUILD_ID"`
	PublishCommands bool   `env:"PUBLISH_COMMANDS" envDefault:"true"`

	CooldownBackend       string        `env:"COOLDOWN_BACKEND" envDefault:"memory"`
	ValkeyAddr            string        `env:"VALKEY_ADDR" envDefault:"localhost:6379"`
	CooldownSweepInterval time.Duration `env:"COOLDOWN_SWEEP_INTERVAL" envDefault:"1m"`
	CooldownIdleTTL       time.Duration `env:"COOLDOWN_IDLE_TTL" envDefault:"24h"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env files if present, then the process environment.
func Load(files ...string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(files...)

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.CooldownBackend = strings.ToLower(strings.TrimSpace(cfg.CooldownBackend))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CooldownBackend {
	case BackendMemory, BackendValkey:
	default:
		return fmt.Errorf("COOLDOWN_BACKEND must be %q or %q, got %q", BackendMemory, BackendValkey, c.CooldownBackend)
	}
	if c.CooldownBackend == BackendValkey && c.ValkeyAddr == "" {
		return errors.New("VALKEY_ADDR is required for the valkey cooldown backend")
	}
	if c.CooldownSweepInterval <= 0 {
		return errors.New("COOLDOWN_SWEEP_INTERVAL must be positive")
	}
	if c.CooldownIdleTTL <= 0 {
		return errors.New("COOLDOWN_IDLE_TTL must be positive")
	}
	return nil
}

// RequireBot checks the settings only the Discord bot needs.
func (c *Config) RequireBot() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	if c.DevMode && c.DevGuildID == "" {
		return errors.New("DEV_GUILD_ID is required when DEV_MODE is on")
	}
	return nil
}
