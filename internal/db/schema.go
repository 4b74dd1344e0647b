package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS resume_positions (
  content_key      TEXT PRIMARY KEY,
  imdb_id          TEXT NOT NULL,
  season           INTEGER NOT NULL DEFAULT 0,
  episode          INTEGER NOT NULL DEFAULT 0,
  title            TEXT NOT NULL DEFAULT '',
  progress_seconds REAL NOT NULL,
  duration_seconds REAL NOT NULL,
  reported_by      TEXT NOT NULL DEFAULT '',
  updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resume_positions_updated_at
  ON resume_positions(updated_at);
`
