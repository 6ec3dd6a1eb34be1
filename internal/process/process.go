// Package process orchestrates one ingest-then-publish cycle.
package process

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"astronet-watch/publisher/internal/extract"
	"astronet-watch/publisher/internal/fetcher"
	"astronet-watch/publisher/internal/language"
	"astronet-watch/publisher/internal/models"
	"astronet-watch/publisher/internal/publish"
	"astronet-watch/publisher/internal/store"
)

const (
	// A malformed listing document is treated as transient: the fetch+parse
	// is retried a few times with a fixed pause before the cycle fails hard.
	listingParseAttempts = 3
	listingRetryPause    = 2 * time.Second
)

// Config carries the processor's cycle-level settings.
type Config struct {
	ListingURL     string
	HealthcheckURL string
}

// Processor runs the ingestion and publication pipelines against a shared
// store and channel client. All dependencies are constructed in main and
// passed down; the processor owns no global state.
type Processor struct {
	fetcher   *fetcher.Fetcher
	extractor *extract.Extractor
	filter    *language.Filter
	store     *store.EntryStore
	publisher *publish.Publisher
	cfg       Config
}

// New creates a cycle processor from its collaborators.
func New(
	f *fetcher.Fetcher,
	extractor *extract.Extractor,
	filter *language.Filter,
	entryStore *store.EntryStore,
	publisher *publish.Publisher,
	cfg Config,
) *Processor {
	return &Processor{
		fetcher:   f,
		extractor: extractor,
		filter:    filter,
		store:     entryStore,
		publisher: publisher,
		cfg:       cfg,
	}
}

// RunCycle performs one full pass: fetch and extract the listing, filter and
// insert the surviving candidates, deliver the unpublished backlog, then ping
// the liveness endpoint. A *fetcher.FetchError from the listing fetch
// escalates to the caller, which skips the cycle; anything else returned here
// is an unclassified failure the caller is expected to fail fast on.
func (p *Processor) RunCycle(ctx context.Context) error {
	candidates, err := p.fetchListing(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("candidates", len(candidates)).Msg("Parsed listing page")

	inserted := 0
	for _, candidate := range candidates {
		if !p.filter.Allows(candidate.SourcePath, candidate.Body) {
			continue
		}
		if p.store.Insert(ctx, candidateToEntry(&candidate)) {
			inserted++
		}
	}
	log.Info().Int("inserted", inserted).Msg("Ingestion finished")

	unpublished, err := p.store.Unpublished(ctx)
	if err != nil {
		return err
	}

	if len(unpublished) > 0 {
		log.Info().Int("unpublished", len(unpublished)).Msg("Publishing backlog")
		if err := p.publisher.Publish(ctx, unpublished); err != nil {
			return err
		}
	} else {
		log.Info().Msg("No unpublished entries")
	}

	p.pingHealthcheck(ctx)
	return nil
}

// fetchListing retrieves and parses the listing page. A structural parse
// failure is retried with a fixed pause; a transport failure escalates
// immediately as transient.
func (p *Processor) fetchListing(ctx context.Context) ([]extract.Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= listingParseAttempts; attempt++ {
		body, err := p.fetcher.Get(ctx, p.cfg.ListingURL)
		if err != nil {
			return nil, err
		}

		candidates, err := p.extractor.ExtractListing(ctx, body)
		if err == nil {
			return candidates, nil
		}
		lastErr = err

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Listing document failed structural parsing")

		if attempt < listingParseAttempts {
			select {
			case <-time.After(listingRetryPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("listing failed structural parsing after %d attempts: %w", listingParseAttempts, lastErr)
}

// pingHealthcheck reports liveness after a successful cycle. Best-effort:
// failures are logged and swallowed.
func (p *Processor) pingHealthcheck(ctx context.Context) {
	if p.cfg.HealthcheckURL == "" {
		return
	}
	if err := p.fetcher.Ping(ctx, p.cfg.HealthcheckURL); err != nil {
		log.Warn().Err(err).Msg("Healthcheck ping failed")
	}
}

func candidateToEntry(c *extract.Candidate) *models.Entry {
	return &models.Entry{
		Title:       c.Title,
		Body:        c.Body,
		SourcePath:  c.SourcePath,
		MediaURL:    sql.NullString{String: c.MediaURL, Valid: c.MediaURL != ""},
		PublishDate: c.PublishDate,
	}
}
