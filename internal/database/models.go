package database

// Article represents an ingested newspaper article: its token stream, the
// boundary arrays produced at ingestion time, and the materialized labelling
// state maintained by the annotation service.
type Article struct {
	ID     int64
	Name   string
	Source string
	Text   string

	// Tokens holds every token of the article in reading order, each with
	// its trailing whitespace so the original text is a plain join.
	Tokens []string
	// SentenceEnds[i] is the index of the last token of sentence i.
	SentenceEnds []int
	// ParagraphEnds[j] is the index of the last sentence of paragraph j.
	ParagraphEnds []int
	// InQuotes[t] is 1 iff token t lies inside a quotation-mark span.
	InQuotes []int
	// Mentions holds (first, last) token index pairs of candidate speaker
	// mentions found at ingestion time.
	Mentions [][2]int

	// Labeled[i] is 1 iff sentence i has reached label consensus. Labeled,
	// FullyLabeled and MinConfidence are materialized views over the
	// user_labels rows, refreshed after every submission.
	Labeled      []int
	FullyLabeled bool
	// TestSet is nil until the article first becomes fully labeled, then
	// fixed forever by a one-time train/test draw.
	TestSet *bool

	// Confidence and Predictions are per-sentence scalars from the external
	// prediction models, refreshed by a batch job.
	Confidence    []float64
	Predictions   []int
	MinConfidence float64

	AdminOnly bool
	CreatedAt *string
}

// SentenceCount returns the number of sentences in the article.
func (a *Article) SentenceCount() int {
	return len(a.SentenceEnds)
}

// UserLabel is one annotator's answer for one sentence. Rows are written
// once and never mutated; empty Labels mark a skip.
type UserLabel struct {
	ID            int64
	ArticleID     int64
	SessionID     string
	SentenceIndex int
	Labels        []int
	AuthorIndex   []int
	AdminLabel    bool
	CreatedAt     *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalArticles        int
	FullyLabeledArticles int
	TotalLabels          int
	SkippedLabels        int
	Sessions             int
}
