// Package submit validates a flat token-tag vector covering an annotated text
// window and decomposes it back into per-sentence label records.
package submit

import (
	"errors"

	"github.com/quotelab/quotelab/internal/consensus"
	"github.com/quotelab/quotelab/internal/span"
)

var (
	// ErrWindow means the sentence window or task range is out of range.
	ErrWindow = errors.New("sentence window out of range")
	// ErrTags means the tag vector is not binary or holds two disjoint runs.
	ErrTags = errors.New("tags must be 0 or 1 and form a single contiguous run")
	// ErrLength means the tag vector does not cover the window exactly.
	ErrLength = errors.New("tag count does not match the text window")
	// ErrAuthor means an author offset points outside the text window.
	ErrAuthor = errors.New("author index outside the text window")
)

// Record is one per-sentence label row to persist.
type Record struct {
	Sentence int
	Labels   []int
	Authors  []int
}

// Decompose splits the tags an annotator produced for the window
// [firstSentence, lastSentence] into one record per sentence. taskIndices is
// the contiguous sentence range originally issued as the task; the window may
// be wider when the annotator loaded surrounding context. Author offsets are
// relative to the window's first token and are resolved to absolute indices.
//
// When the task range holds no quote tag, only the task sentences are
// recorded, with empty author spans. When it does, every task sentence is
// recorded with the resolved author span, plus any context sentence whose
// sub-vector carries a quote continuation; all-zero context sentences are
// deliberately not recorded.
func Decompose(sentenceEnds, taskIndices []int, firstSentence, lastSentence int, tags, authors []int) ([]Record, error) {
	if len(taskIndices) == 0 {
		return nil, ErrWindow
	}
	firstToken, lastToken := span.TokenRange(sentenceEnds, firstSentence, lastSentence)
	if firstToken < 0 {
		return nil, ErrWindow
	}
	if taskIndices[0] < firstSentence || taskIndices[len(taskIndices)-1] > lastSentence {
		return nil, ErrWindow
	}
	if !consensus.ValidLabels(tags) {
		return nil, ErrTags
	}
	if len(tags) != lastToken-firstToken+1 {
		return nil, ErrLength
	}

	absAuthors := make([]int, 0, len(authors))
	for _, offset := range authors {
		abs := firstToken + offset
		if abs < firstToken || abs > lastToken {
			return nil, ErrAuthor
		}
		absAuthors = append(absAuthors, abs)
	}

	// One sub-vector per sentence in the window.
	split := make([][]int, 0, lastSentence-firstSentence+1)
	offset := 0
	for s := firstSentence; s <= lastSentence; s++ {
		start, end := span.TokenRange(sentenceEnds, s, s)
		n := end - start + 1
		split = append(split, tags[offset:offset+n])
		offset += n
	}

	taskFirst := taskIndices[0] - firstSentence
	taskLast := taskIndices[len(taskIndices)-1] - firstSentence

	taskHasQuote := false
	for _, labels := range split[taskFirst : taskLast+1] {
		if hasOne(labels) {
			taskHasQuote = true
			break
		}
	}

	var records []Record
	if !taskHasQuote {
		// The annotator found no quote in the issued range: record only the
		// task sentences, with no author span.
		for i, labels := range split[taskFirst : taskLast+1] {
			records = append(records, Record{
				Sentence: taskIndices[0] + i,
				Labels:   labels,
			})
		}
		return records, nil
	}

	for i, labels := range split[taskFirst : taskLast+1] {
		records = append(records, Record{
			Sentence: taskIndices[0] + i,
			Labels:   labels,
			Authors:  absAuthors,
		})
	}
	for i, labels := range split[:taskFirst] {
		if hasOne(labels) {
			records = append(records, Record{
				Sentence: firstSentence + i,
				Labels:   labels,
				Authors:  absAuthors,
			})
		}
	}
	for i, labels := range split[taskLast+1:] {
		if hasOne(labels) {
			records = append(records, Record{
				Sentence: firstSentence + taskLast + 1 + i,
				Labels:   labels,
				Authors:  absAuthors,
			})
		}
	}
	return records, nil
}

func hasOne(labels []int) bool {
	for _, l := range labels {
		if l == 1 {
			return true
		}
	}
	return false
}
