package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultDatabaseURL      = "sqlite://opboard.db"
	DefaultRolesConfig      = "roles.toml"
	DefaultTimezone         = "America/New_York"
	DefaultTimeFormat       = "Monday, January 02, 2006 15:04"
	DefaultLocale           = "en"
	DefaultCommandPrefix    = "!"
	DefaultDialogueTimeout  = 5 * time.Minute
	DefaultReminderInterval = 60 * time.Second
	DefaultReminderLead     = 15 * time.Minute
	DefaultCleanupInterval  = 15 * time.Minute
	DefaultCleanupGrace     = 24 * time.Hour
	DefaultDedupTTL         = 5 * time.Second
	DefaultRenderDebounce   = 100 * time.Millisecond
)

type Config struct {
	Token          string
	GuildID        string
	BoardChannelID string
	// StaffRoleID may be empty, in which case nobody can create events.
	StaffRoleID string

	DatabaseURL   string
	RolesConfig   string
	Timezone      string
	TimeFormat    string
	Locale        string
	CommandPrefix string

	DialogueTimeout  time.Duration
	ReminderInterval time.Duration
	ReminderLead     time.Duration
	CleanupInterval  time.Duration
	CleanupGrace     time.Duration
	DedupTTL         time.Duration
	RenderDebounce   time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// Load reads envFile (or ./.env when envFile is empty) into the process
// environment, then builds and validates the configuration. A missing
// ./.env is fine; a missing explicit envFile is not.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Token:          strings.TrimSpace(getenv("TOKEN")),
		GuildID:        strings.TrimSpace(getenv("GUILD_ID")),
		BoardChannelID: strings.TrimSpace(getenv("BOARD_CHANNEL_ID")),
		StaffRoleID:    strings.TrimSpace(getenv("STAFF_ROLE_ID")),
		DatabaseURL:    env("DATABASE_URL", DefaultDatabaseURL),
		RolesConfig:    env("ROLES_CONFIG", DefaultRolesConfig),
		Timezone:       env("TIMEZONE", DefaultTimezone),
		TimeFormat:     env("TIME_FORMAT", DefaultTimeFormat),
		Locale:         env("LOCALE", DefaultLocale),
		CommandPrefix:  env("COMMAND_PREFIX", DefaultCommandPrefix),
		LogFormat:      strings.ToLower(env("LOG_FORMAT", "text")),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"DIALOGUE_TIMEOUT", DefaultDialogueTimeout, &cfg.DialogueTimeout},
		{"REMINDER_INTERVAL", DefaultReminderInterval, &cfg.ReminderInterval},
		{"REMINDER_LEAD", DefaultReminderLead, &cfg.ReminderLead},
		{"CLEANUP_INTERVAL", DefaultCleanupInterval, &cfg.CleanupInterval},
		{"CLEANUP_GRACE", DefaultCleanupGrace, &cfg.CleanupGrace},
		{"DEDUP_TTL", DefaultDedupTTL, &cfg.DedupTTL},
		{"RENDER_DEBOUNCE", DefaultRenderDebounce, &cfg.RenderDebounce},
	}
	for _, d := range durations {
		raw := env(d.key, "")
		if raw == "" {
			*d.dest = d.def
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("config: %s must be positive, got %s", d.key, raw)
		}
		*d.dest = v
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate applies the rules that cannot be expressed as defaults.
func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("config: TOKEN is required")
	}
	ids := []struct{ name, value string }{
		{"GUILD_ID", c.GuildID},
		{"BOARD_CHANNEL_ID", c.BoardChannelID},
	}
	for _, id := range ids {
		if id.value == "" {
			return fmt.Errorf("config: %s is required", id.name)
		}
		if !isSnowflake(id.value) {
			return fmt.Errorf("config: %s must be a Discord id (digits only)", id.name)
		}
	}
	if c.StaffRoleID != "" && !isSnowflake(c.StaffRoleID) {
		return fmt.Errorf("config: STAFF_ROLE_ID must be a Discord id (digits only)")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if strings.ContainsAny(c.CommandPrefix, " \t\n") {
		return fmt.Errorf("config: COMMAND_PREFIX must not contain whitespace")
	}
	return nil
}

func isSnowflake(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
