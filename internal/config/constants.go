package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./db.sqlite"

	DefaultRootURL     = "https://www.astronet.ru"
	DefaultListingPath = "/db/apod.html"

	// Media qualifying prefixes scanned on detail pages.
	DefaultMediaURLPrefix   = "https://images.astronet.ru/pubd/"
	DefaultVideoEmbedPrefix = "https://www.youtube.com/embed/"

	DefaultIntervalSec = 3600 // Seconds between polling cycles
	DefaultTargetLang  = "ru"

	DefaultSendPauseSec = 2 // Seconds between channel deliveries

	DefaultLogLevel = "info"
)
