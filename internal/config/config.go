package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Env            string
	DatabaseURL    string
	ListenAddr     string
	APIKey         string
	DiscordToken   string
	PingWebhookURL string
	CheckSchedule  string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if _, err := cron.ParseStandard(c.CheckSchedule); err != nil {
		return fmt.Errorf("CHECK_SCHEDULE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "API_KEY", value: c.APIKey},
		{name: "CHECK_SCHEDULE", value: c.CheckSchedule},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DiscordEnabled reports whether the Discord client should start. The
// HTTP API works without it.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != ""
}
