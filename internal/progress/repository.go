package progress

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ResumePosition is a locally cached "continue watching" record for one title.
type ResumePosition struct {
	ContentKey      string    `json:"contentKey"`
	ImdbID          string    `json:"imdbId"`
	Season          int       `json:"season,omitempty"`
	Episode         int       `json:"episode,omitempty"`
	Title           string    `json:"title"`
	ProgressSeconds float64   `json:"progressSeconds"`
	DurationSeconds float64   `json:"durationSeconds"`
	ReportedBy      string    `json:"reportedBy"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Repository persists resume positions in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an initialized database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Get returns the record for a content key, if any.
func (r *Repository) Get(contentKey string) (*ResumePosition, error) {
	row := r.db.QueryRow(`
		SELECT content_key, imdb_id, season, episode, title,
		       progress_seconds, duration_seconds, reported_by, updated_at
		FROM resume_positions WHERE content_key = ?`, contentKey)

	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resume position: %w", err)
	}
	return pos, nil
}

// Upsert writes a record, replacing any existing row for the same key.
func (r *Repository) Upsert(pos ResumePosition) error {
	_, err := r.db.Exec(`
		INSERT INTO resume_positions
		  (content_key, imdb_id, season, episode, title,
		   progress_seconds, duration_seconds, reported_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_key) DO UPDATE SET
		  title = excluded.title,
		  progress_seconds = excluded.progress_seconds,
		  duration_seconds = excluded.duration_seconds,
		  reported_by = excluded.reported_by,
		  updated_at = excluded.updated_at`,
		pos.ContentKey, pos.ImdbID, pos.Season, pos.Episode, pos.Title,
		pos.ProgressSeconds, pos.DurationSeconds, pos.ReportedBy,
		pos.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert resume position: %w", err)
	}
	return nil
}

// List returns the most recently updated records.
func (r *Repository) List(limit int) ([]ResumePosition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT content_key, imdb_id, season, episode, title,
		       progress_seconds, duration_seconds, reported_by, updated_at
		FROM resume_positions
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list resume positions: %w", err)
	}
	defer rows.Close()

	var positions []ResumePosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("list resume positions: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// PruneOlderThan deletes records last updated before the cutoff. Returns the
// number of rows removed.
func (r *Repository) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM resume_positions WHERE updated_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune resume positions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*ResumePosition, error) {
	var pos ResumePosition
	var updatedAt string
	if err := row.Scan(&pos.ContentKey, &pos.ImdbID, &pos.Season, &pos.Episode,
		&pos.Title, &pos.ProgressSeconds, &pos.DurationSeconds, &pos.ReportedBy,
		&updatedAt); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	pos.UpdatedAt = parsed
	return &pos, nil
}
