package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/data"
)

// Settings table keys consulted when the environment leaves a value unset.
const (
	SettingDiscordToken  = "discord_token"
	SettingGuildID       = "guild_id"
	SettingCommandPrefix = "command_prefix"
	SettingSlashCommands = "enable_slash_commands"
)

var (
	ErrMissingDSN   = errors.New("config: DATABASE_URL (or MYSQL_DSN) is required")
	ErrMissingToken = errors.New("config: DISCORD_TOKEN (or the discord_token setting) is required")
)

// Base is the runtime configuration of proposal-bot.
type Base struct {
	DatabaseURL string `env:"DATABASE_URL"`
	MySQLDSN    string `env:"MYSQL_DSN"`

	Token         string `env:"DISCORD_TOKEN"`
	GuildID       string `env:"GUILD_ID"`
	CommandPrefix string `env:"COMMAND_PREFIX"`
	SlashCommands string `env:"ENABLE_SLASH_COMMANDS"`

	RedisURL         string   `env:"REDIS_URL"`
	HTTPAddr         string   `env:"HTTP_ADDR"`
	HTTPAllowOrigins []string `env:"HTTP_ALLOW_ORIGINS" envSeparator:","`

	StoreTimeout          time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	DBMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DispatchMaxConcurrent int           `env:"DISPATCH_MAX_CONCURRENT" envDefault:"32"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads the environment. Settings stored in the database are applied
// later with ApplySettings, once a connection exists.
func Load() (Base, error) {
	var cfg Base
	if err := env.Parse(&cfg); err != nil {
		return Base{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// DSN returns DATABASE_URL, falling back to MYSQL_DSN.
func (c Base) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.MySQLDSN
}

func (c Base) Pool() data.PoolConfig {
	return data.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
}

// ApplySettings fills values the environment left empty from the settings
// cache (see data.LoadSettings) and then applies defaults.
func (c *Base) ApplySettings() {
	c.Token = GetSetting(c.Token, SettingDiscordToken, "")
	c.GuildID = GetSetting(c.GuildID, SettingGuildID, "")
	c.CommandPrefix = GetSetting(c.CommandPrefix, SettingCommandPrefix, commands.DefaultPrefix)
	c.SlashCommands = GetSetting(c.SlashCommands, SettingSlashCommands, "1")
}

// SlashCommandsEnabled reports whether slash commands should be registered.
func (c Base) SlashCommandsEnabled() bool {
	return parseBoolDefault(c.SlashCommands, true)
}

// ValidateDatabase fails when no DSN is configured.
func (c Base) ValidateDatabase() error {
	if strings.TrimSpace(c.DSN()) == "" {
		return ErrMissingDSN
	}
	return nil
}

// Validate checks every required value. Call after ApplySettings.
func (c Base) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// GetSetting returns current when set, then the named setting, then
// defaultValue.
func GetSetting(current, name, defaultValue string) string {
	if current != "" {
		return current
	}
	if val := data.GetSetting(name); val != "" {
		return val
	}
	return defaultValue
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
