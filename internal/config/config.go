package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Channel modes
const (
	ModeStandard   = "standard"
	ModeAggregated = "aggregated"
)

// Config holds all application configuration
type Config struct {
	// Backend
	APIBaseURL      string
	AuthToken       string
	HTTPTimeout     time.Duration
	RetryMaxElapsed time.Duration

	// Identity
	UserEmail string
	Username  string

	// Channel
	ChannelName  string
	CreatorEmail string // defaults to UserEmail
	ChannelMode  string // "standard" or "aggregated"
	PageSize     int

	// Readiness poller
	ReadinessInterval    time.Duration
	ReadinessMaxAttempts int
	ReadinessPageSize    int

	// Auto-refresh poller
	RefreshInitialDelay time.Duration
	RefreshInterval     time.Duration

	// Short-clip cleanup sweep
	ShortClipCleanup     bool
	ShortClipThreshold   time.Duration
	ShortClipConcurrency int
	FFprobePath          string

	// Search
	SearchDebounce time.Duration

	// Scheduled jobs (cron specs)
	FollowRefreshSchedule string
	InboxRefreshSchedule  string

	// Tracing
	TraceSampleRatio float64

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/chansync.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	return LoadWith(viper.GetViper())
}

// LoadWith loads configuration from the given viper instance. Command line
// flags bound to v take precedence over the environment.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	setDefaults(v)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "chansync")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		APIBaseURL:      strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		AuthToken:       v.GetString("AUTH_TOKEN"),
		HTTPTimeout:     v.GetDuration("HTTP_TIMEOUT"),
		RetryMaxElapsed: v.GetDuration("RETRY_MAX_ELAPSED"),

		UserEmail: v.GetString("USER_EMAIL"),
		Username:  v.GetString("USERNAME"),

		ChannelName:  v.GetString("CHANNEL_NAME"),
		CreatorEmail: v.GetString("CREATOR_EMAIL"),
		ChannelMode:  strings.ToLower(v.GetString("CHANNEL_MODE")),
		PageSize:     v.GetInt("PAGE_SIZE"),

		ReadinessInterval:    v.GetDuration("READINESS_INTERVAL"),
		ReadinessMaxAttempts: v.GetInt("READINESS_MAX_ATTEMPTS"),
		ReadinessPageSize:    v.GetInt("READINESS_PAGE_SIZE"),

		RefreshInitialDelay: v.GetDuration("REFRESH_INITIAL_DELAY"),
		RefreshInterval:     v.GetDuration("REFRESH_INTERVAL"),

		ShortClipCleanup:     v.GetBool("SHORT_CLIP_CLEANUP"),
		ShortClipThreshold:   v.GetDuration("SHORT_CLIP_THRESHOLD"),
		ShortClipConcurrency: v.GetInt("SHORT_CLIP_CONCURRENCY"),
		FFprobePath:          v.GetString("FFPROBE_PATH"),

		SearchDebounce: v.GetDuration("SEARCH_DEBOUNCE"),

		FollowRefreshSchedule: v.GetString("FOLLOW_REFRESH_SCHEDULE"),
		InboxRefreshSchedule:  v.GetString("INBOX_REFRESH_SCHEDULE"),

		TraceSampleRatio: v.GetFloat64("TRACE_SAMPLE_RATIO"),

		ServerPort: v.GetString("SERVER_PORT"),

		DatabaseFile: filepath.Join(configDir, "chansync.db"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if config.CreatorEmail == "" {
		config.CreatorEmail = config.UserEmail
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("RETRY_MAX_ELAPSED", 10*time.Second)
	v.SetDefault("CHANNEL_MODE", ModeStandard)
	v.SetDefault("PAGE_SIZE", 20)
	v.SetDefault("READINESS_INTERVAL", time.Second)
	v.SetDefault("READINESS_MAX_ATTEMPTS", 120)
	v.SetDefault("READINESS_PAGE_SIZE", 5)
	v.SetDefault("REFRESH_INITIAL_DELAY", 10*time.Second)
	v.SetDefault("REFRESH_INTERVAL", 15*time.Second)
	v.SetDefault("SHORT_CLIP_CLEANUP", true)
	v.SetDefault("SHORT_CLIP_THRESHOLD", 6*time.Second)
	v.SetDefault("SHORT_CLIP_CONCURRENCY", 3)
	v.SetDefault("FFPROBE_PATH", "ffprobe")
	v.SetDefault("SEARCH_DEBOUNCE", 300*time.Millisecond)
	v.SetDefault("FOLLOW_REFRESH_SCHEDULE", "@every 30s")
	v.SetDefault("INBOX_REFRESH_SCHEDULE", "@every 1m")
	v.SetDefault("TRACE_SAMPLE_RATIO", 0.1)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.UserEmail == "" {
		return fmt.Errorf("USER_EMAIL is required")
	}
	if c.ChannelName == "" {
		return fmt.Errorf("CHANNEL_NAME is required")
	}
	if c.ChannelMode != ModeStandard && c.ChannelMode != ModeAggregated {
		return fmt.Errorf("CHANNEL_MODE must be %q or %q, got %q", ModeStandard, ModeAggregated, c.ChannelMode)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive")
	}
	if c.ReadinessMaxAttempts <= 0 {
		return fmt.Errorf("READINESS_MAX_ATTEMPTS must be positive")
	}
	return nil
}
