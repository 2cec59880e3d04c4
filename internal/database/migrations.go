package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    tokens TEXT NOT NULL,
    sentence_ends TEXT NOT NULL,
    paragraph_ends TEXT NOT NULL,
    in_quotes TEXT NOT NULL,
    mentions TEXT,
    labeled TEXT NOT NULL,
    fully_labeled INTEGER DEFAULT 0,
    test_set INTEGER,
    confidence TEXT NOT NULL,
    predictions TEXT NOT NULL,
    min_confidence REAL DEFAULT 0,
    admin_only INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_labels (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    session_id TEXT NOT NULL,
    sentence_index INTEGER NOT NULL,
    labels TEXT NOT NULL,
    author_index TEXT NOT NULL,
    admin_label INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_articles_hardest ON articles(fully_labeled, min_confidence);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
CREATE INDEX IF NOT EXISTS idx_user_labels_sentence ON user_labels(article_id, sentence_index);
CREATE INDEX IF NOT EXISTS idx_user_labels_session ON user_labels(session_id, article_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
