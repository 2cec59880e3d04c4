// Package annotate is the orchestration layer of the labelling engine: it
// hands out tasks, accepts submissions and keeps every article's materialized
// labelling state consistent with its label rows.
package annotate

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/quotelab/quotelab/internal/consensus"
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/span"
	"github.com/quotelab/quotelab/internal/submit"
	"github.com/quotelab/quotelab/internal/task"
)

// ErrNotFound means a submission referenced an article that does not exist.
var ErrNotFound = errors.New("article not found")

// Config collects the engine's tunables.
type Config struct {
	Consensus consensus.Config
	Selector  task.Config
	// Sources are the newspaper identifiers tasks are drawn from. Each
	// request draws one source uniformly and falls back to the full pool
	// when that source has nothing left. Empty means no source routing.
	Sources []string
	// TestFraction is the Bernoulli probability that an article entering the
	// fully-labeled state is assigned to the test split.
	TestFraction float64
}

// DefaultConfig returns the production configuration without source routing.
func DefaultConfig() Config {
	return Config{
		Consensus:    consensus.DefaultConfig(),
		Selector:     task.DefaultConfig(),
		TestFraction: 0.1,
	}
}

// Service serves labelling tasks and processes submissions on top of a
// database handle. It is safe for concurrent use by the HTTP handlers.
type Service struct {
	db  *database.DB
	cfg Config

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a Service. The rand source drives source routing and the
// train/test draw; tests inject a seeded one.
func New(db *database.DB, cfg Config, rng *rand.Rand) *Service {
	return &Service{db: db, cfg: cfg, rng: rng}
}

// RequestTask returns the next labelling unit for a session, or nil when no
// article has anything left for it. Admin sessions also see admin-only
// articles.
func (s *Service) RequestTask(sessionID string, admin bool) (*task.Task, error) {
	source := s.drawSource()
	t, err := s.taskFromPool(sessionID, source, admin)
	if err != nil || t != nil {
		return t, err
	}
	if source != "" {
		// The drawn source is exhausted for this session; try the full pool
		// before giving up.
		return s.taskFromPool(sessionID, "", admin)
	}
	return nil, nil
}

func (s *Service) taskFromPool(sessionID, source string, admin bool) (*task.Task, error) {
	articles, err := s.db.HardestArticles(s.cfg.Selector.ArticleLoads, source, admin)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		a := &articles[i]
		answered, err := s.db.AnsweredSentences(a.ID, sessionID)
		if err != nil {
			return nil, err
		}
		if t := s.cfg.Selector.FromArticle(a, answered); t != nil {
			return t, nil
		}
	}
	return nil, nil
}

func (s *Service) drawSource() string {
	if len(s.cfg.Sources) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Sources[s.rng.Intn(len(s.cfg.Sources))]
}

// Submission is one annotator answer for a task. Tags covers the window
// [FirstSentence, LastSentence] token for token; Authors holds speaker token
// offsets relative to the window's first token. A Skip records the task
// sentences as passed over without voting on them.
type Submission struct {
	ArticleID     int64
	SessionID     string
	TaskIndices   []int
	FirstSentence int
	LastSentence  int
	Tags          []int
	Authors       []int
	Skip          bool
	Admin         bool
}

// Submit validates and persists a submission, then refreshes the article's
// labeled state, all within one transaction. Validation failures surface the
// submit package's sentinel errors.
func (s *Service) Submit(sub Submission) error {
	a, err := s.db.GetArticleByID(sub.ArticleID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}

	var records []submit.Record
	if sub.Skip {
		if len(sub.TaskIndices) == 0 {
			return submit.ErrWindow
		}
		for _, sent := range sub.TaskIndices {
			if sent < 0 || sent >= a.SentenceCount() {
				return submit.ErrWindow
			}
			records = append(records, submit.Record{Sentence: sent})
		}
	} else {
		records, err = submit.Decompose(a.SentenceEnds, sub.TaskIndices,
			sub.FirstSentence, sub.LastSentence, sub.Tags, sub.Authors)
		if err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		label := database.UserLabel{
			ArticleID:     a.ID,
			SessionID:     sub.SessionID,
			SentenceIndex: r.Sentence,
			Labels:        r.Labels,
			AuthorIndex:   r.Authors,
			AdminLabel:    sub.Admin,
		}
		if _, err := s.db.InsertUserLabelTx(tx, &label); err != nil {
			return err
		}
	}

	touched := make([]int, 0, len(records))
	for _, r := range records {
		touched = append(touched, r.Sentence)
	}
	if err := s.refreshArticleTx(tx, a, touched); err != nil {
		return err
	}
	return tx.Commit()
}

// RefreshArticle recomputes an article's entire labeled state from its label
// rows. Used after the completion thresholds change.
func (s *Service) RefreshArticle(articleID int64) error {
	a, err := s.db.GetArticleByID(articleID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	all := make([]int, a.SentenceCount())
	for i := range all {
		all[i] = i
	}
	if err := s.refreshArticleTx(tx, a, all); err != nil {
		return err
	}
	return tx.Commit()
}

// Refresh recomputes the labeled state of every article.
func (s *Service) Refresh() (int, error) {
	articles, err := s.db.AllArticles()
	if err != nil {
		return 0, err
	}
	for i := range articles {
		if err := s.RefreshArticle(articles[i].ID); err != nil {
			return i, fmt.Errorf("refreshing article %d: %w", articles[i].ID, err)
		}
	}
	return len(articles), nil
}

// refreshArticleTx recomputes the labeled bit for the given sentences, writes
// the article's labeled bitmap and fully_labeled flag, and runs the one-time
// train/test draw when the article first becomes fully labeled. Both the
// label rows and the current labelling state are read through tx: a
// submission sees its own inserts, and a recompute never starts from a
// bitmap another submission has moved past.
func (s *Service) refreshArticleTx(tx *sql.Tx, a *database.Article, sentences []int) error {
	current, wasFully, assigned, err := s.db.LabelingStateTx(tx, a.ID)
	if err != nil {
		return err
	}
	labeled := make([]int, a.SentenceCount())
	copy(labeled, current)

	seen := make(map[int]bool, len(sentences))
	for _, sent := range sentences {
		if seen[sent] {
			continue
		}
		seen[sent] = true

		rows, err := s.db.LabelsForSentenceTx(tx, a.ID, sent)
		if err != nil {
			return err
		}
		if s.cfg.Consensus.Reached(consensus.Aggregate(votes(rows))) {
			labeled[sent] = 1
		} else {
			labeled[sent] = 0
		}
	}

	fully := allOnes(labeled)
	var testSet *bool
	if fully && !wasFully && assigned == nil {
		draw := s.drawTestSet()
		testSet = &draw
	}
	return s.db.UpdateLabelingStateTx(tx, a.ID, labeled, fully, testSet)
}

func (s *Service) drawTestSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.cfg.TestFraction
}

// UpdateConfidence stores fresh per-sentence model scores for an article and
// caches the minimum confidence the task selector orders by.
func (s *Service) UpdateConfidence(articleID int64, confidence []float64, predictions []int) error {
	a, err := s.db.GetArticleByID(articleID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	if len(confidence) != a.SentenceCount() || len(predictions) != a.SentenceCount() {
		return fmt.Errorf("article %d has %d sentences, got %d scores and %d predictions",
			articleID, a.SentenceCount(), len(confidence), len(predictions))
	}

	min := 1.0
	for _, c := range confidence {
		if c < 0 || c > 1 {
			return fmt.Errorf("article %d: confidence %v outside [0, 1]", articleID, c)
		}
		if c < min {
			min = c
		}
	}
	return s.db.UpdateConfidence(articleID, confidence, predictions, min)
}

// SourceCount is the labelling progress of one source, counted over its fully
// labeled articles.
type SourceCount struct {
	Source    string
	Articles  int
	Sentences int
	Quotes    int
}

// SourceCounts reports, per source, how many articles and sentences are fully
// labeled and how many of those sentences hold a quote under consensus.
func (s *Service) SourceCounts() ([]SourceCount, error) {
	articles, err := s.db.FullyLabeledArticles()
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]*SourceCount)
	var order []string
	for i := range articles {
		a := &articles[i]
		c, ok := bySource[a.Source]
		if !ok {
			c = &SourceCount{Source: a.Source}
			bySource[a.Source] = c
			order = append(order, a.Source)
		}
		c.Articles++
		for sent := 0; sent < a.SentenceCount(); sent++ {
			rows, err := s.db.LabelsForSentence(a.ID, sent)
			if err != nil {
				return nil, err
			}
			c.Sentences++
			if hasQuote(consensus.Aggregate(votes(rows)).Labels) {
				c.Quotes++
			}
		}
	}
	sort.Strings(order)

	out := make([]SourceCount, 0, len(order))
	for _, source := range order {
		out = append(out, *bySource[source])
	}
	return out, nil
}

func hasQuote(labels []int) bool {
	for _, l := range labels {
		if l == 1 {
			return true
		}
	}
	return false
}

// SentenceLabels is the consensus result for one sentence of an exported
// article.
type SentenceLabels struct {
	Sentence int
	Tokens   []string
	Outcome  consensus.Outcome
}

// LabeledArticle is one fully labeled article with its per-sentence consensus.
type LabeledArticle struct {
	ArticleID int64
	Name      string
	Source    string
	TestSet   bool
	Sentences []SentenceLabels
}

// Export returns every fully labeled article with the aggregated label vector
// and author span of each sentence, ready for model training.
func (s *Service) Export() ([]LabeledArticle, error) {
	articles, err := s.db.FullyLabeledArticles()
	if err != nil {
		return nil, err
	}

	out := make([]LabeledArticle, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		la := LabeledArticle{
			ArticleID: a.ID,
			Name:      a.Name,
			Source:    a.Source,
			TestSet:   a.TestSet != nil && *a.TestSet,
		}
		for sent := 0; sent < a.SentenceCount(); sent++ {
			rows, err := s.db.LabelsForSentence(a.ID, sent)
			if err != nil {
				return nil, err
			}
			first, last := span.TokenRange(a.SentenceEnds, sent, sent)
			la.Sentences = append(la.Sentences, SentenceLabels{
				Sentence: sent,
				Tokens:   a.Tokens[first : last+1],
				Outcome:  consensus.Aggregate(votes(rows)),
			})
		}
		out = append(out, la)
	}
	return out, nil
}

func votes(rows []database.UserLabel) []consensus.Vote {
	vs := make([]consensus.Vote, 0, len(rows))
	for _, r := range rows {
		vs = append(vs, consensus.Vote{Labels: r.Labels, Authors: r.AuthorIndex, Admin: r.AdminLabel})
	}
	return vs
}

func allOnes(xs []int) bool {
	for _, x := range xs {
		if x != 1 {
			return false
		}
	}
	return len(xs) > 0
}
