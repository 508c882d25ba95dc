package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	internalconfig "github.com/stefs/evelyn-reminder/internal/config"
)

type envConfig struct {
	Env            string `env:"ENV" envDefault:"production"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	ListenAddr     string `env:"LISTEN_ADDR" envDefault:":8080"`
	APIKey         string `env:"API_KEY,required"`
	DiscordToken   string `env:"DISCORD_TOKEN"`
	PingWebhookURL string `env:"PING_WEBHOOK_URL"`
	CheckSchedule  string `env:"CHECK_SCHEDULE" envDefault:"@every 30s"`
}

func Load() (*internalconfig.Config, error) {
	// A local .env is optional; real deployments set the environment.
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:            raw.Env,
		DatabaseURL:    raw.DatabaseURL,
		ListenAddr:     raw.ListenAddr,
		APIKey:         raw.APIKey,
		DiscordToken:   raw.DiscordToken,
		PingWebhookURL: raw.PingWebhookURL,
		CheckSchedule:  raw.CheckSchedule,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
