package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"astronet-watch/publisher/internal/config"
	"astronet-watch/publisher/internal/database"
	"astronet-watch/publisher/internal/extract"
	"astronet-watch/publisher/internal/fetcher"
	"astronet-watch/publisher/internal/language"
	"astronet-watch/publisher/internal/process"
	"astronet-watch/publisher/internal/publish"
	"astronet-watch/publisher/internal/store"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: PUBLISHER_DB_PATH)")

	var intervalSec int
	flag.IntVar(&intervalSec, "interval", int(cfg.Interval.Seconds()),
		"Interval in seconds between polling cycles, 0 for one-shot mode (env: PUBLISHER_INTERVAL_SEC)")

	var logLevelStr string
	flag.StringVar(&logLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: PUBLISHER_LOG_LEVEL)")

	flag.Parse()

	cfg.Interval = time.Duration(intervalSec) * time.Second
	if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize crash reporting")
		}
	}

	if err := run(cfg); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		log.Error().Err(err).Msg("Publisher failed")
		os.Exit(1)
	}
}

// run wires the pipeline and drives the poll/publish loop until the process
// is terminated.
func run(cfg *config.Config) error {
	log.Info().Msg("Started astronomy-news publishing service")

	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	entryStore := store.New(db)

	channel, err := publish.NewTelegramClient(cfg.BotToken, cfg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to initialize channel client: %w", err)
	}

	docFetcher := fetcher.New()
	extractor := extract.New(docFetcher, extract.Config{
		RootURL:          cfg.RootURL,
		MediaURLPrefix:   cfg.MediaURLPrefix,
		VideoEmbedPrefix: cfg.VideoEmbedPrefix,
	})
	filter := language.New(cfg.TargetLang)
	publisher := publish.New(entryStore, channel, publish.Config{
		RootURL:             cfg.RootURL,
		VideoEmbedPrefix:    cfg.VideoEmbedPrefix,
		SendPause:           cfg.SendPause,
		MarkFailedPublished: cfg.MarkFailedPublished,
	})

	processor := process.New(docFetcher, extractor, filter, entryStore, publisher, process.Config{
		ListingURL:     cfg.ListingURL(),
		HealthcheckURL: cfg.HealthcheckURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := runCycle(ctx, processor); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Cycle canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval == 0 {
		log.Info().Msg("One-shot cycle completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next cycle")

	for {
		select {
		case <-ticker.C:
			if err := runCycle(ctx, processor); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Cycle canceled by shutdown signal")
					return nil
				}
				return err
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		}
	}
}

// runCycle executes a single cycle. A transport-class failure on the listing
// fetch is expected network flakiness: it is logged and the loop proceeds to
// the next cycle. Anything else propagates and terminates the process.
func runCycle(ctx context.Context, processor *process.Processor) error {
	startTime := time.Now()
	err := processor.RunCycle(ctx)
	log.Info().Dur("duration", time.Since(startTime)).Msg("Cycle finished")

	if err != nil {
		var fetchErr *fetcher.FetchError
		if errors.As(err, &fetchErr) {
			log.Warn().Err(err).Msg("Transient fetch failure, skipping cycle")
			return nil
		}
		return err
	}
	return nil
}
