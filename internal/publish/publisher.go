// Package publish delivers the unpublished backlog to the messaging channel.
package publish

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"astronet-watch/publisher/internal/models"
	"astronet-watch/publisher/internal/store"
)

const detailsLabel = "Подробности на astronet.ru"

// Config carries the delivery behavior of the publisher.
type Config struct {
	// RootURL builds the per-entry backlink in captions.
	RootURL string
	// VideoEmbedPrefix identifies media links that must be delivered as a
	// watch link instead of a photo.
	VideoEmbedPrefix string
	// SendPause is the delay between consecutive deliveries, respecting the
	// channel's rate limit.
	SendPause time.Duration
	// MarkFailedPublished marks an entry published even when its delivery
	// failed, so a permanently broken entry is never retried.
	MarkFailedPublished bool
}

// Publisher delivers unpublished entries oldest-first and flips their
// published flag. Delivery is intentionally sequential.
type Publisher struct {
	store   *store.EntryStore
	channel ChannelClient
	cfg     Config
}

// New creates a publisher writing its publication marks through the given store.
func New(entryStore *store.EntryStore, channel ChannelClient, cfg Config) *Publisher {
	return &Publisher{store: entryStore, channel: channel, cfg: cfg}
}

// Publish sorts the given entries by publish date ascending and delivers them
// one by one. A failed delivery is logged and never blocks the entries behind
// it; whether the failed entry is still marked published follows the
// configured policy. Returns early only on context cancellation.
func (p *Publisher) Publish(ctx context.Context, entries []models.Entry) error {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishDate.Before(entries[j].PublishDate)
	})

	for _, entry := range entries {
		delivered := p.deliver(ctx, &entry)

		if delivered || p.cfg.MarkFailedPublished {
			if err := p.store.MarkPublished(ctx, entry.ID); err != nil {
				log.Error().Err(err).Str("source_path", entry.SourcePath).Msg("Failed to mark entry published")
			} else {
				log.Info().Str("source_path", entry.SourcePath).Msg("Published entry")
			}
		}

		select {
		case <-time.After(p.cfg.SendPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// deliver formats and sends one entry, reporting success.
func (p *Publisher) deliver(ctx context.Context, entry *models.Entry) bool {
	caption := p.caption(entry)
	mediaURL := ""
	if entry.MediaURL.Valid {
		mediaURL = entry.MediaURL.String
	}

	var err error
	switch {
	case strings.HasPrefix(mediaURL, p.cfg.VideoEmbedPrefix):
		watchURL := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, watchLink(mediaURL))
		err = p.channel.SendMessage(ctx, watchURL+"\n\n"+caption)
	case mediaURL != "":
		err = p.channel.SendPhoto(ctx, mediaURL, caption)
	default:
		// No media could be resolved for this entry; the caption alone
		// still carries title, body and the backlink.
		err = p.channel.SendMessage(ctx, caption)
	}

	if err != nil {
		log.Error().Err(err).Str("source_path", entry.SourcePath).Msg("Failed to deliver entry")
		return false
	}
	return true
}

// caption builds the MarkdownV2 caption: bold title, body, details backlink.
func (p *Publisher) caption(entry *models.Entry) string {
	title := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, strings.TrimSpace(entry.Title))
	body := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, entry.Body)
	backlink := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, p.cfg.RootURL+entry.SourcePath)
	label := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, detailsLabel)

	return fmt.Sprintf("*%s*\n\n%s\n\n[%s](%s)", title, body, label, backlink)
}

// watchLink rewrites a video-embed link into its user-navigable watch-page
// equivalent and strips the auto-play/related-content query suffix.
func watchLink(embedURL string) string {
	watch := strings.Replace(embedURL, "embed/", "watch?v=", 1)
	return strings.TrimSuffix(watch, "?rel=0")
}
