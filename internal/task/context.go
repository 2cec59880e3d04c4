package task

import (
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/span"
)

// Context is a read-only window of tokens an annotator loads around a task
// to locate a quote's start or its speaker. An empty window carries the
// (-1, -1) sentinel.
type Context struct {
	Tokens        []string
	FirstSentence int
	LastSentence  int
}

func emptyContext() Context {
	return Context{FirstSentence: -1, LastSentence: -1}
}

// Above returns the paragraph above the given sentence, truncated to the
// sentences strictly before it when the sentence sits mid-paragraph. At the
// top of the article the window is empty.
func Above(a *database.Article, sentence int) Context {
	if sentence <= 0 || sentence >= a.SentenceCount() {
		return emptyContext()
	}

	firstSent, lastSent := span.ParagraphSentences(a.ParagraphEnds, 0)
	for p := 0; sentence > lastSent+1; p++ {
		firstSent, lastSent = span.ParagraphSentences(a.ParagraphEnds, p+1)
		if lastSent < 0 {
			return emptyContext()
		}
	}
	if sentence-1 < lastSent {
		lastSent = sentence - 1
	}

	firstToken, lastToken := span.TokenRange(a.SentenceEnds, firstSent, lastSent)
	return Context{
		Tokens:        a.Tokens[firstToken : lastToken+1],
		FirstSentence: firstSent,
		LastSentence:  lastSent,
	}
}

// Below returns the paragraph below the given sentence, truncated to the
// sentences strictly after it when the sentence sits mid-paragraph. At the
// end of the article the window is empty.
func Below(a *database.Article, sentence int) Context {
	if sentence < 0 || sentence >= a.SentenceCount()-1 {
		return emptyContext()
	}

	firstSent, lastSent := span.ParagraphSentences(a.ParagraphEnds, 0)
	for p := 0; sentence >= lastSent; p++ {
		firstSent, lastSent = span.ParagraphSentences(a.ParagraphEnds, p+1)
		if lastSent < 0 {
			return emptyContext()
		}
	}
	if sentence+1 > firstSent {
		firstSent = sentence + 1
	}

	firstToken, lastToken := span.TokenRange(a.SentenceEnds, firstSent, lastSent)
	return Context{
		Tokens:        a.Tokens[firstToken : lastToken+1],
		FirstSentence: firstSent,
		LastSentence:  lastSent,
	}
}
