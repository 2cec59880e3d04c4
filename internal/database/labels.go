package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const labelColumns = "id, article_id, session_id, sentence_index, labels, author_index, admin_label, created_at"

// InsertUserLabelTx inserts a label row within a transaction and returns its
// ID. Rows are append-only; a skip is stored with empty labels.
func (db *DB) InsertUserLabelTx(tx *sql.Tx, l *UserLabel) (int64, error) {
	labelsJSON, err := json.Marshal(emptyAsList(l.Labels))
	if err != nil {
		return 0, err
	}
	authorsJSON, err := json.Marshal(emptyAsList(l.AuthorIndex))
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(
		`INSERT INTO user_labels (article_id, session_id, sentence_index, labels, author_index, admin_label)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ArticleID, l.SessionID, l.SentenceIndex, string(labelsJSON), string(authorsJSON), boolInt(l.AdminLabel),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting user label: %w", err)
	}
	return result.LastInsertId()
}

// LabelsForSentenceTx returns every label row for one sentence of an article,
// ordered by ascending id so consensus tie-breaking is deterministic. Reading
// within the submission's transaction guarantees the recompute sees its own
// freshly inserted rows.
func (db *DB) LabelsForSentenceTx(tx *sql.Tx, articleID int64, sentenceIndex int) ([]UserLabel, error) {
	rows, err := tx.Query(
		`SELECT `+labelColumns+` FROM user_labels
		WHERE article_id = ? AND sentence_index = ? ORDER BY id`,
		articleID, sentenceIndex,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserLabels(rows)
}

// LabelsForSentence is LabelsForSentenceTx outside a transaction, for
// recomputation jobs and exports.
func (db *DB) LabelsForSentence(articleID int64, sentenceIndex int) ([]UserLabel, error) {
	rows, err := db.conn.Query(
		`SELECT `+labelColumns+` FROM user_labels
		WHERE article_id = ? AND sentence_index = ? ORDER BY id`,
		articleID, sentenceIndex,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserLabels(rows)
}

// AnsweredSentences returns the set of sentence indices a session has already
// answered (including skips) for an article.
func (db *DB) AnsweredSentences(articleID int64, sessionID string) (map[int]bool, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT sentence_index FROM user_labels WHERE article_id = ? AND session_id = ?",
		articleID, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answered := make(map[int]bool)
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		answered[s] = true
	}
	return answered, rows.Err()
}

// GetStats returns aggregate statistics over articles and labels.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	err := db.conn.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM articles WHERE fully_labeled = 1),
			(SELECT COUNT(*) FROM user_labels),
			(SELECT COUNT(*) FROM user_labels WHERE labels = '[]'),
			(SELECT COUNT(DISTINCT session_id) FROM user_labels)`,
	).Scan(&s.TotalArticles, &s.FullyLabeledArticles, &s.TotalLabels, &s.SkippedLabels, &s.Sessions)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanUserLabels(rows *sql.Rows) ([]UserLabel, error) {
	var labels []UserLabel
	for rows.Next() {
		var l UserLabel
		var labelsJSON, authorsJSON string
		var admin int
		if err := rows.Scan(&l.ID, &l.ArticleID, &l.SessionID, &l.SentenceIndex,
			&labelsJSON, &authorsJSON, &admin, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(labelsJSON), &l.Labels); err != nil {
			return nil, fmt.Errorf("decoding labels for row %d: %w", l.ID, err)
		}
		if err := json.Unmarshal([]byte(authorsJSON), &l.AuthorIndex); err != nil {
			return nil, fmt.Errorf("decoding authors for row %d: %w", l.ID, err)
		}
		l.AdminLabel = admin != 0
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// emptyAsList keeps nil slices encoded as [] so the skip sentinel is a
// queryable literal.
func emptyAsList(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}
