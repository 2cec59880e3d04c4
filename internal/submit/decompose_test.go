package submit

import (
	"errors"
	"testing"
)

// Four sentences of 4, 4, 3 and 4 tokens.
var sentenceEnds = []int{3, 7, 10, 14}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecomposeSingleSentenceRoundTrip(t *testing.T) {
	// Window identical to the task: sentence 1 (tokens 4..7).
	tags := []int{0, 0, 1, 1}
	records, err := Decompose(sentenceEnds, []int{1}, 1, 1, tags, []int{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Sentence != 1 {
		t.Errorf("expected sentence 1, got %d", records[0].Sentence)
	}
	if !intsEqual(records[0].Labels, tags) {
		t.Errorf("expected labels %v, got %v", tags, records[0].Labels)
	}
	// Relative offset 0 resolves to the window's first token.
	if !intsEqual(records[0].Authors, []int{4}) {
		t.Errorf("expected authors [4], got %v", records[0].Authors)
	}
}

func TestDecomposeNoQuoteEmitsTaskOnly(t *testing.T) {
	// Window covers sentences 0..2, task is sentence 1 only, all tags zero.
	tags := make([]int, 11)
	records, err := Decompose(sentenceEnds, []int{1}, 0, 2, tags, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Sentence != 1 {
		t.Errorf("expected sentence 1, got %d", records[0].Sentence)
	}
	if len(records[0].Authors) != 0 {
		t.Errorf("expected empty authors, got %v", records[0].Authors)
	}
}

func TestDecomposeNoFalsePropagation(t *testing.T) {
	// Quote inside the task range, context sentences all zero: adjacent
	// sentences must not be recorded.
	tags := []int{0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0}
	records, err := Decompose(sentenceEnds, []int{1}, 0, 2, tags, []int{4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Sentence != 1 {
		t.Errorf("expected sentence 1, got %d", records[0].Sentence)
	}
}

func TestDecomposeQuoteContinuation(t *testing.T) {
	// Task is sentence 1; the annotator loaded sentences 0 and 2 for context
	// and found the quote runs from sentence 1 into sentence 2.
	tags := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 0}
	records, err := Decompose(sentenceEnds, []int{1}, 0, 2, tags, []int{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Sentence != 1 || records[1].Sentence != 2 {
		t.Errorf("expected sentences 1 and 2, got %d and %d", records[0].Sentence, records[1].Sentence)
	}
	if !intsEqual(records[1].Labels, []int{1, 1, 0}) {
		t.Errorf("expected continuation labels [1 1 0], got %v", records[1].Labels)
	}
	// Both records carry the same resolved author span.
	if !intsEqual(records[0].Authors, []int{1}) || !intsEqual(records[1].Authors, []int{1}) {
		t.Errorf("expected authors [1] on both records, got %v / %v", records[0].Authors, records[1].Authors)
	}
}

func TestDecomposeQuoteBeforeTask(t *testing.T) {
	// Quote starts in context sentence 0 and covers task sentence 1.
	tags := []int{0, 0, 1, 1, 1, 1, 1, 0, 0, 0, 0}
	records, err := Decompose(sentenceEnds, []int{1}, 0, 2, tags, []int{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Task sentence first, then the preceding context sentence.
	if records[0].Sentence != 1 || records[1].Sentence != 0 {
		t.Errorf("expected sentences 1 and 0, got %d and %d", records[0].Sentence, records[1].Sentence)
	}
}

func TestDecomposeRejectsDisjointRuns(t *testing.T) {
	records, err := Decompose(sentenceEnds, []int{1}, 1, 1, []int{0, 1, 0, 1}, nil)
	if !errors.Is(err, ErrTags) {
		t.Errorf("expected ErrTags, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected zero records, got %d", len(records))
	}
}

func TestDecomposeRejectsNonBinaryTags(t *testing.T) {
	_, err := Decompose(sentenceEnds, []int{1}, 1, 1, []int{0, 2, 0, 0}, nil)
	if !errors.Is(err, ErrTags) {
		t.Errorf("expected ErrTags, got %v", err)
	}
}

func TestDecomposeRejectsWrongLength(t *testing.T) {
	_, err := Decompose(sentenceEnds, []int{1}, 1, 1, []int{0, 1, 1}, nil)
	if !errors.Is(err, ErrLength) {
		t.Errorf("expected ErrLength, got %v", err)
	}
}

func TestDecomposeRejectsAuthorOutsideWindow(t *testing.T) {
	_, err := Decompose(sentenceEnds, []int{1}, 1, 1, []int{0, 1, 1, 0}, []int{9})
	if !errors.Is(err, ErrAuthor) {
		t.Errorf("expected ErrAuthor, got %v", err)
	}
}

func TestDecomposeRejectsBadWindow(t *testing.T) {
	if _, err := Decompose(sentenceEnds, []int{1}, 2, 9, []int{0}, nil); !errors.Is(err, ErrWindow) {
		t.Errorf("expected ErrWindow for out-of-range window, got %v", err)
	}
	if _, err := Decompose(sentenceEnds, nil, 0, 1, []int{0}, nil); !errors.Is(err, ErrWindow) {
		t.Errorf("expected ErrWindow for empty task, got %v", err)
	}
	if _, err := Decompose(sentenceEnds, []int{3}, 0, 1, make([]int, 8), nil); !errors.Is(err, ErrWindow) {
		t.Errorf("expected ErrWindow for task outside window, got %v", err)
	}
}
