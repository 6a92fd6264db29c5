package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration
type Config struct {
	Bot      BotConfig      `yaml:"discord-bot"`
	Database DatabaseConfig `yaml:"database"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Logging  LoggingConfig  `yaml:"logging"`

	// ConfirmationTimeout is how long a link code stays redeemable, in seconds
	ConfirmationTimeout int `yaml:"confirmation-timeout"`

	// Roles pairs Discord roles with LuckPerms groups. Order matters: lookups
	// scan the list and the first match wins.
	Roles []RoleMappingConfig `yaml:"roles"`
}

// BotConfig holds Discord bot specific configuration
type BotConfig struct {
	Token         string `yaml:"token"`
	ApplicationID string `yaml:"application-id"`
	GuildID       string `yaml:"guild-id"`
}

// DatabaseConfig holds PostgreSQL connection details
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// BridgeConfig holds the game-server facing HTTP API settings
type BridgeConfig struct {
	Listen string `yaml:"listen"`
	Secret string `yaml:"secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// RoleMappingConfig is one configured Discord role / LuckPerms group pairing
type RoleMappingConfig struct {
	Label         string `yaml:"label"`
	DiscordRoleID string `yaml:"discord-role-id"`
	GroupName     string `yaml:"luck-perms-group-name"`
}

// Load reads the configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate required fields
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("discord-bot.token is required")
	}
	if cfg.Bot.ApplicationID == "" {
		return nil, fmt.Errorf("discord-bot.application-id is required")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	for i, r := range cfg.Roles {
		if r.Label == "" || r.DiscordRoleID == "" || r.GroupName == "" {
			return nil, fmt.Errorf("roles[%d]: label, discord-role-id and luck-perms-group-name are all required", i)
		}
	}

	// Set defaults
	if cfg.ConfirmationTimeout == 0 {
		cfg.ConfirmationTimeout = 300
	}
	if cfg.Bridge.Listen == "" {
		cfg.Bridge.Listen = ":8750"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}

// LinkTimeout returns the confirmation timeout as a duration
func (c *Config) LinkTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeout) * time.Second
}
