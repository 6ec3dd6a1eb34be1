package publish_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astronet-watch/publisher/internal/database"
	"astronet-watch/publisher/internal/models"
	"astronet-watch/publisher/internal/publish"
	"astronet-watch/publisher/internal/store"
)

const embedPrefix = "https://www.youtube.com/embed/"

type delivery struct {
	kind     string // "photo" or "message"
	photoURL string
	text     string // caption or message body
}

// fakeChannel records deliveries in order and optionally fails them all.
type fakeChannel struct {
	deliveries []delivery
	failAll    bool
}

func (c *fakeChannel) SendPhoto(_ context.Context, photoURL, caption string) error {
	if c.failAll {
		return errors.New("channel unavailable")
	}
	c.deliveries = append(c.deliveries, delivery{kind: "photo", photoURL: photoURL, text: caption})
	return nil
}

func (c *fakeChannel) SendMessage(_ context.Context, text string) error {
	if c.failAll {
		return errors.New("channel unavailable")
	}
	c.deliveries = append(c.deliveries, delivery{kind: "message", text: text})
	return nil
}

func newTestStore(t *testing.T) *store.EntryStore {
	t.Helper()

	cfg := database.NewConfig(filepath.Join(t.TempDir(), "test.sqlite"))
	db, err := database.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return store.New(db)
}

func newPublisher(s *store.EntryStore, channel publish.ChannelClient, markFailed bool) *publish.Publisher {
	return publish.New(s, channel, publish.Config{
		RootURL:             "https://www.astronet.ru",
		VideoEmbedPrefix:    embedPrefix,
		SendPause:           0,
		MarkFailedPublished: markFailed,
	})
}

func insertEntry(t *testing.T, s *store.EntryStore, sourcePath, mediaURL string, date time.Time) {
	t.Helper()
	require.True(t, s.Insert(context.Background(), &models.Entry{
		Title:       "Заголовок " + sourcePath,
		Body:        "Текст новости.",
		SourcePath:  sourcePath,
		MediaURL:    sql.NullString{String: mediaURL, Valid: mediaURL != ""},
		PublishDate: date,
	}))
}

func TestPublish_OldestFirst(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{}
	p := newPublisher(s, channel, true)
	ctx := context.Background()

	// Inserted newest first; delivery must still be oldest first.
	insertEntry(t, s, "/news/42", "https://images.astronet.ru/pubd/a.jpg", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	insertEntry(t, s, "/news/41", "https://images.astronet.ru/pubd/b.jpg", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	require.Len(t, channel.deliveries, 2)
	assert.Equal(t, "https://images.astronet.ru/pubd/b.jpg", channel.deliveries[0].photoURL)
	assert.Equal(t, "https://images.astronet.ru/pubd/a.jpg", channel.deliveries[1].photoURL)

	remaining, err := s.Unpublished(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPublish_PhotoCaptionFormat(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{}
	p := newPublisher(s, channel, true)
	ctx := context.Background()

	insertEntry(t, s, "/news/42", "https://images.astronet.ru/pubd/a.jpg", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	require.Len(t, channel.deliveries, 1)
	d := channel.deliveries[0]
	assert.Equal(t, "photo", d.kind)

	title := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, "Заголовок /news/42")
	assert.True(t, strings.HasPrefix(d.text, "*"+title+"*\n\n"), "caption = %q", d.text)
	assert.Contains(t, d.text, tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, "Подробности на astronet.ru"))
	assert.Contains(t, d.text, tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, "https://www.astronet.ru/news/42"))
}

func TestPublish_VideoBecomesWatchLinkMessage(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{}
	p := newPublisher(s, channel, true)
	ctx := context.Background()

	insertEntry(t, s, "/news/42", embedPrefix+"abc123?rel=0", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	require.Len(t, channel.deliveries, 1)
	d := channel.deliveries[0]
	assert.Equal(t, "message", d.kind)

	watchURL := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, "https://www.youtube.com/watch?v=abc123")
	assert.True(t, strings.HasPrefix(d.text, watchURL+"\n\n"), "message = %q", d.text)
	assert.NotContains(t, d.text, "embed/")
	assert.NotContains(t, d.text, "rel=0")
}

func TestPublish_NoMediaFallsBackToTextMessage(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{}
	p := newPublisher(s, channel, true)
	ctx := context.Background()

	insertEntry(t, s, "/news/42", "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	require.Len(t, channel.deliveries, 1)
	assert.Equal(t, "message", channel.deliveries[0].kind)
}

func TestPublish_FailedDeliveryMarkedPublishedByDefault(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{failAll: true}
	p := newPublisher(s, channel, true)
	ctx := context.Background()

	insertEntry(t, s, "/news/42", "https://images.astronet.ru/pubd/a.jpg", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	remaining, err := s.Unpublished(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining, "failed entry still marked published under the default policy")
}

func TestPublish_FailedDeliveryRetriedWhenPolicyDisabled(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{failAll: true}
	p := newPublisher(s, channel, false)
	ctx := context.Background()

	insertEntry(t, s, "/news/42", "https://images.astronet.ru/pubd/a.jpg", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	remaining, err := s.Unpublished(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "failed entry stays unpublished so the next cycle retries it")
}

func TestPublish_FailureDoesNotBlockSubsequentEntries(t *testing.T) {
	s := newTestStore(t)
	channel := &fakeChannel{}
	failing := &firstCallFails{inner: channel}
	p := newPublisher(s, failing, true)
	ctx := context.Background()

	insertEntry(t, s, "/news/41", "https://images.astronet.ru/pubd/a.jpg", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))
	insertEntry(t, s, "/news/42", "https://images.astronet.ru/pubd/b.jpg", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	entries, err := s.Unpublished(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, entries))

	// First (oldest) delivery failed, second still went out.
	require.Len(t, channel.deliveries, 1)
	assert.Equal(t, "https://images.astronet.ru/pubd/b.jpg", channel.deliveries[0].photoURL)
}

// firstCallFails fails the first delivery attempt and forwards the rest.
type firstCallFails struct {
	inner *fakeChannel
	calls int
}

func (c *firstCallFails) SendPhoto(ctx context.Context, photoURL, caption string) error {
	c.calls++
	if c.calls == 1 {
		return errors.New("channel unavailable")
	}
	return c.inner.SendPhoto(ctx, photoURL, caption)
}

func (c *firstCallFails) SendMessage(ctx context.Context, text string) error {
	c.calls++
	if c.calls == 1 {
		return errors.New("channel unavailable")
	}
	return c.inner.SendMessage(ctx, text)
}
