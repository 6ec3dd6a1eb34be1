// Package store persists ingested entries in the SQLite publication ledger.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"astronet-watch/publisher/internal/database"
	"astronet-watch/publisher/internal/models"
)

const dateLayout = "2006-01-02"

// EntryStore provides access to the entries table. Entries are append-only:
// the single mutation ever applied after insert is the published flag.
type EntryStore struct {
	db *database.DB
}

// New creates a store backed by an open database connection.
func New(db *database.DB) *EntryStore {
	return &EntryStore{db: db}
}

// Insert persists a new entry. A duplicate source_path is expected during
// re-ingestion and is swallowed; any other persistence error is logged and
// likewise not surfaced, so one bad row never aborts a cycle. The return
// value reports whether a row was actually written.
func (s *EntryStore) Insert(ctx context.Context, entry *models.Entry) bool {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (title, body, source_path, media_url, publish_date, published)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(source_path) DO NOTHING;`,
		entry.Title, entry.Body, entry.SourcePath, entry.MediaURL,
		entry.PublishDate.Format(dateLayout),
	)
	if err != nil {
		log.Error().Err(err).Str("source_path", entry.SourcePath).Msg("Failed to insert entry")
		return false
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		log.Error().Err(err).Str("source_path", entry.SourcePath).Msg("Failed to get rows affected for entry")
		return false
	}
	if rowsAffected == 0 {
		log.Debug().Str("source_path", entry.SourcePath).Msg("Duplicate entry detected")
		return false
	}
	return true
}

// Unpublished returns all entries not yet delivered to the channel, in
// unspecified order. Callers impose their own ordering.
func (s *EntryStore) Unpublished(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	err := s.db.SelectContext(ctx, &entries, `SELECT * FROM entries WHERE published = 0`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Entry{}, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return entries, nil
}

// MarkPublished flips an entry's published flag. The transition is one-way:
// false to true, once.
func (s *EntryStore) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entries SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry %d published: %w", id, err)
	}
	return nil
}
