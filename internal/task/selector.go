// Package task picks the next labelling unit for an annotator session from an
// article's per-sentence labeled state and model confidence scores. Selection
// is pure: it never marks anything labeled, and two sessions may be offered
// the same sentence — redundant answers are how consensus is built.
package task

import (
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/span"
)

// Task kinds.
const (
	KindSentence  = "sentence"
	KindParagraph = "paragraph"
	KindNone      = "none"
)

// Config holds the selection thresholds.
type Config struct {
	// ConfidenceThreshold is the minimum paragraph confidence for the
	// whole-paragraph shortcut.
	ConfidenceThreshold float64
	// ArticleLoads is the size of the hardest-articles candidate pool.
	ArticleLoads int
	// MinParagraphLength is the sentence count a paragraph must exceed to be
	// issued as a single task.
	MinParagraphLength int
}

// DefaultConfig returns the production selection thresholds.
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 0.8, ArticleLoads: 10, MinParagraphLength: 2}
}

// Task is one labelling unit handed to an annotator: a contiguous run of
// sentences and their token slice.
type Task struct {
	ArticleID   int64
	SentenceIDs []int
	Tokens      []string
	Kind        string
}

// FromArticle walks the article's paragraphs in order and returns the next
// unit this session should label, or nil when the article has nothing left
// for it.
//
// A paragraph whose sentences are all confidently predicted as plain text is
// issued whole; otherwise the first sentence that is neither labeled nor
// already answered by the session becomes the anchor, extended across any
// quotation span that crosses its boundaries so the annotator never sees a
// quote truncated mid-span.
func (c Config) FromArticle(a *database.Article, answered map[int]bool) *Task {
	for p := range a.ParagraphEnds {
		firstSent, lastSent := span.ParagraphSentences(a.ParagraphEnds, p)
		if firstSent < 0 {
			return nil
		}

		if c.paragraphShortcut(a, firstSent, lastSent, answered) {
			return makeTask(a, firstSent, lastSent, KindParagraph)
		}

		for s := firstSent; s <= lastSent; s++ {
			if a.Labeled[s] == 1 || answered[s] {
				continue
			}
			first, last := extendAcrossQuotes(a, s)
			return makeTask(a, first, last, KindSentence)
		}
	}
	return nil
}

// paragraphShortcut reports whether the paragraph [firstSent, lastSent] can
// be issued as a single task: every sentence confidently predicted negative,
// the first sentence still open for this session, and the paragraph long
// enough to be worth the batch.
func (c Config) paragraphShortcut(a *database.Article, firstSent, lastSent int, answered map[int]bool) bool {
	if lastSent-firstSent+1 <= c.MinParagraphLength {
		return false
	}
	if a.Labeled[firstSent] == 1 || answered[firstSent] {
		return false
	}
	for s := firstSent; s <= lastSent; s++ {
		if a.Confidence[s] <= c.ConfidenceThreshold || a.Predictions[s] == 1 {
			return false
		}
	}
	return true
}

// extendAcrossQuotes widens the single-sentence anchor to cover a quotation
// span that starts before it or closes after it.
func extendAcrossQuotes(a *database.Article, anchor int) (int, int) {
	first, last := anchor, anchor
	startToken, endToken := span.TokenRange(a.SentenceEnds, anchor, anchor)

	if a.InQuotes[startToken] == 1 {
		if s := span.QuoteStart(a.SentenceEnds, a.InQuotes, startToken); s >= 0 && s < first {
			first = s
		}
	}
	if a.InQuotes[endToken] == 1 {
		if s := span.QuoteEnd(a.SentenceEnds, a.InQuotes, endToken); s > last {
			last = s
		}
	}
	if last >= a.SentenceCount() {
		last = a.SentenceCount() - 1
	}
	return first, last
}

func makeTask(a *database.Article, firstSent, lastSent int, kind string) *Task {
	firstToken, lastToken := span.TokenRange(a.SentenceEnds, firstSent, lastSent)
	ids := make([]int, 0, lastSent-firstSent+1)
	for s := firstSent; s <= lastSent; s++ {
		ids = append(ids, s)
	}
	return &Task{
		ArticleID:   a.ID,
		SentenceIDs: ids,
		Tokens:      a.Tokens[firstToken : lastToken+1],
		Kind:        kind,
	}
}
