package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	// Origin site
	RootURL          string
	ListingPath      string
	MediaURLPrefix   string
	VideoEmbedPrefix string

	// Persistence
	DBPath string

	// Delivery channel
	BotToken string
	ChatID   int64
	// SendPause is the delay between consecutive channel deliveries.
	SendPause time.Duration
	// MarkFailedPublished keeps a failed delivery marked as published so it
	// is never retried. Disabling it makes the next cycle retry the entry.
	MarkFailedPublished bool

	// Ingestion
	Interval   time.Duration
	TargetLang string

	// Side calls
	HealthcheckURL string
	SentryDSN      string

	// Log settings
	LogLevel zerolog.Level
}

// Load reads configuration from a .env file (when present) and the
// environment, falling back to hardcoded defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		RootURL:          GetEnvString("PUBLISHER_ROOT_URL", DefaultRootURL),
		ListingPath:      GetEnvString("PUBLISHER_LISTING_PATH", DefaultListingPath),
		MediaURLPrefix:   GetEnvString("PUBLISHER_MEDIA_URL_PREFIX", DefaultMediaURLPrefix),
		VideoEmbedPrefix: GetEnvString("PUBLISHER_VIDEO_EMBED_PREFIX", DefaultVideoEmbedPrefix),

		DBPath: GetEnvString("PUBLISHER_DB_PATH", DefaultDBPath),

		BotToken:            GetEnvString("PUBLISHER_BOT_TOKEN", ""),
		ChatID:              GetEnvInt64("PUBLISHER_CHAT_ID", 0),
		SendPause:           time.Duration(GetEnvInt("PUBLISHER_SEND_PAUSE_SEC", DefaultSendPauseSec)) * time.Second,
		MarkFailedPublished: GetEnvBool("PUBLISHER_MARK_FAILED_PUBLISHED", true),

		Interval:   time.Duration(GetEnvInt("PUBLISHER_INTERVAL_SEC", DefaultIntervalSec)) * time.Second,
		TargetLang: GetEnvString("PUBLISHER_TARGET_LANG", DefaultTargetLang),

		HealthcheckURL: GetEnvString("PUBLISHER_HEALTHCHECK_URL", ""),
		SentryDSN:      GetEnvString("PUBLISHER_SENTRY_DSN", ""),

		LogLevel: GetEnvLogLevel("PUBLISHER_LOG_LEVEL", logLevel),
	}
}

// ListingURL returns the absolute URL of the listing page.
func (c *Config) ListingURL() string {
	return c.RootURL + c.ListingPath
}
