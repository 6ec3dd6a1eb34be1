package models

import (
	"database/sql"
	"time"
)

// Entry represents a row in the entries table: one news item extracted from
// the origin site. source_path is the natural key; the store rejects
// duplicates on it silently.
type Entry struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Body        string         `db:"body"`
	SourcePath  string         `db:"source_path"`
	MediaURL    sql.NullString `db:"media_url"`
	PublishDate time.Time      `db:"publish_date"`
	Published   bool           `db:"published"`
	CreatedAt   time.Time      `db:"created_at"`
}
