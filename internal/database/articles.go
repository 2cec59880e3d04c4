package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const articleColumns = `id, name, source, text, tokens, sentence_ends, paragraph_ends,
	in_quotes, mentions, labeled, fully_labeled, test_set, confidence, predictions,
	min_confidence, admin_only, created_at`

// InsertArticle inserts an article and returns its ID. The labelling state
// columns are initialized from the Article's slices; callers normally pass
// all-zero Labeled, Confidence and Predictions of sentence length.
func (db *DB) InsertArticle(a *Article) (int64, error) {
	cols, err := marshalArticle(a)
	if err != nil {
		return 0, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO articles (name, source, text, tokens, sentence_ends, paragraph_ends,
		in_quotes, mentions, labeled, fully_labeled, test_set, confidence, predictions,
		min_confidence, admin_only)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Source, a.Text, cols.tokens, cols.sentenceEnds, cols.paragraphEnds,
		cols.inQuotes, cols.mentions, cols.labeled, boolInt(a.FullyLabeled), testSetValue(a.TestSet),
		cols.confidence, cols.predictions, a.MinConfidence, boolInt(a.AdminOnly),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting article: %w", err)
	}
	return result.LastInsertId()
}

// GetArticleByID returns a single article by ID, or nil if it does not exist.
func (db *DB) GetArticleByID(articleID int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, articleID,
	)
	a, err := scanArticle(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// HardestArticles returns up to n articles that are not fully labeled,
// ordered by ascending minimum model confidence (id as tie-break). A
// non-empty source restricts the pool to that source; admin-only articles
// are excluded unless admin is set.
func (db *DB) HardestArticles(n int, source string, admin bool) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE fully_labeled = 0`
	var args []any
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	if !admin {
		query += " AND admin_only = 0"
	}
	query += " ORDER BY min_confidence, id LIMIT ?"
	args = append(args, n)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// FullyLabeledArticles returns every article whose sentences all reached
// consensus, ordered by id.
func (db *DB) FullyLabeledArticles() ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT ` + articleColumns + ` FROM articles WHERE fully_labeled = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// AllArticles returns every article, ordered by id.
func (db *DB) AllArticles() ([]Article, error) {
	rows, err := db.conn.Query(`SELECT ` + articleColumns + ` FROM articles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// LabelingStateTx reads an article's materialized labelling state within a
// transaction. Recomputes must start from the bitmap the transaction sees,
// not from a snapshot taken before it began, or concurrent submissions for
// different sentences would overwrite each other's bits.
func (db *DB) LabelingStateTx(tx *sql.Tx, articleID int64) ([]int, bool, *bool, error) {
	var labeledJSON string
	var fully int
	var testSet sql.NullInt64
	err := tx.QueryRow(
		"SELECT labeled, fully_labeled, test_set FROM articles WHERE id = ?", articleID,
	).Scan(&labeledJSON, &fully, &testSet)
	if err != nil {
		return nil, false, nil, fmt.Errorf("reading labelling state for article %d: %w", articleID, err)
	}

	var labeled []int
	if err := json.Unmarshal([]byte(labeledJSON), &labeled); err != nil {
		return nil, false, nil, fmt.Errorf("decoding labeled bitmap for article %d: %w", articleID, err)
	}
	var ts *bool
	if testSet.Valid {
		v := testSet.Int64 != 0
		ts = &v
	}
	return labeled, fully != 0, ts, nil
}

// UpdateLabelingStateTx writes the materialized labeled bitmap and
// fully_labeled flag for an article within a transaction. A non-nil testSet
// also assigns the train/test membership; test_set is never cleared.
func (db *DB) UpdateLabelingStateTx(tx *sql.Tx, articleID int64, labeled []int, fullyLabeled bool, testSet *bool) error {
	labeledJSON, err := json.Marshal(labeled)
	if err != nil {
		return err
	}
	if testSet != nil {
		_, err = tx.Exec(
			"UPDATE articles SET labeled = ?, fully_labeled = ?, test_set = ? WHERE id = ?",
			string(labeledJSON), boolInt(fullyLabeled), boolInt(*testSet), articleID,
		)
	} else {
		_, err = tx.Exec(
			"UPDATE articles SET labeled = ?, fully_labeled = ? WHERE id = ?",
			string(labeledJSON), boolInt(fullyLabeled), articleID,
		)
	}
	return err
}

// UpdateConfidence replaces an article's per-sentence confidence and
// prediction scalars and the cached minimum confidence.
func (db *DB) UpdateConfidence(articleID int64, confidence []float64, predictions []int, minConfidence float64) error {
	confJSON, err := json.Marshal(confidence)
	if err != nil {
		return err
	}
	predJSON, err := json.Marshal(predictions)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"UPDATE articles SET confidence = ?, predictions = ?, min_confidence = ? WHERE id = ?",
		string(confJSON), string(predJSON), minConfidence, articleID,
	)
	return err
}

// DeleteArticle removes an article and, through the cascade, its labels.
func (db *DB) DeleteArticle(articleID int64) error {
	_, err := db.conn.Exec("DELETE FROM articles WHERE id = ?", articleID)
	return err
}

// ArticleExists reports whether an article with this name and source is
// already stored. Feed collection uses it to skip known entries.
func (db *DB) ArticleExists(name, source string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM articles WHERE name = ? AND source = ?", name, source,
	).Scan(&n)
	return n > 0, err
}

// Sources returns the distinct article sources in the database.
func (db *DB) Sources() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT source FROM articles ORDER BY source")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

type articleJSON struct {
	tokens        string
	sentenceEnds  string
	paragraphEnds string
	inQuotes      string
	mentions      string
	labeled       string
	confidence    string
	predictions   string
}

func marshalArticle(a *Article) (*articleJSON, error) {
	var cols articleJSON
	fields := []struct {
		value any
		out   *string
	}{
		{a.Tokens, &cols.tokens},
		{a.SentenceEnds, &cols.sentenceEnds},
		{a.ParagraphEnds, &cols.paragraphEnds},
		{a.InQuotes, &cols.inQuotes},
		{a.Mentions, &cols.mentions},
		{a.Labeled, &cols.labeled},
		{a.Confidence, &cols.confidence},
		{a.Predictions, &cols.predictions},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("encoding article field: %w", err)
		}
		*f.out = string(data)
	}
	return &cols, nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func scanArticle(scan func(...any) error) (*Article, error) {
	var a Article
	var cols articleJSON
	var fully, adminOnly int
	var testSet sql.NullInt64

	if err := scan(&a.ID, &a.Name, &a.Source, &a.Text, &cols.tokens, &cols.sentenceEnds,
		&cols.paragraphEnds, &cols.inQuotes, &cols.mentions, &cols.labeled, &fully,
		&testSet, &cols.confidence, &cols.predictions, &a.MinConfidence, &adminOnly,
		&a.CreatedAt); err != nil {
		return nil, err
	}

	fields := []struct {
		data string
		out  any
	}{
		{cols.tokens, &a.Tokens},
		{cols.sentenceEnds, &a.SentenceEnds},
		{cols.paragraphEnds, &a.ParagraphEnds},
		{cols.inQuotes, &a.InQuotes},
		{cols.mentions, &a.Mentions},
		{cols.labeled, &a.Labeled},
		{cols.confidence, &a.Confidence},
		{cols.predictions, &a.Predictions},
	}
	for _, f := range fields {
		if f.data == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.data), f.out); err != nil {
			return nil, fmt.Errorf("decoding article %d: %w", a.ID, err)
		}
	}

	a.FullyLabeled = fully != 0
	a.AdminOnly = adminOnly != 0
	if testSet.Valid {
		ts := testSet.Int64 != 0
		a.TestSet = &ts
	}
	return &a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func testSetValue(ts *bool) any {
	if ts == nil {
		return nil
	}
	return boolInt(*ts)
}
