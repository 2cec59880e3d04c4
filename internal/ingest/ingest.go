// Package ingest turns raw newspaper articles into the token stream and
// boundary arrays the labelling engine works on.
package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Document is a processed article ready for insertion: tokens carry their
// trailing whitespace so the text is a plain join, SentenceEnds[i] is the last
// token of sentence i, ParagraphEnds[j] the last sentence of paragraph j, and
// InQuotes marks the tokens between quotation marks.
type Document struct {
	Name          string
	Text          string
	Tokens        []string
	SentenceEnds  []int
	ParagraphEnds []int
	InQuotes      []int
	Mentions      [][2]int
}

// ParseXML processes an article in the newsroom XML format: an <article>
// element holding a <titre> and one <p> per paragraph. Markup nested inside a
// paragraph contributes its text.
func ParseXML(data []byte) (*Document, error) {
	var a xmlArticle
	if err := xml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing article xml: %w", err)
	}

	name := cleanText(a.Title.raw)
	if name == "" {
		name = "No article title"
	}

	paragraphs := make([]string, 0, len(a.Paragraphs))
	for _, p := range a.Paragraphs {
		if text := cleanText(p.raw); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("article %q has no paragraphs", name)
	}
	return FromParagraphs(name, paragraphs), nil
}

// FromParagraphs processes an article given as pre-split plain-text
// paragraphs, as produced by feed collection.
func FromParagraphs(name string, paragraphs []string) *Document {
	d := &Document{
		Name: name,
		Text: strings.Join(paragraphs, "\n"),
	}

	inQuote := 0
	sentenceOpen := false
	for _, p := range paragraphs {
		tokens := Tokenize(NormalizeQuotes(p))
		if len(tokens) == 0 {
			continue
		}
		for _, tok := range tokens {
			d.InQuotes = append(d.InQuotes, inQuote)
			if strings.Contains(tok, `"`) {
				if inQuote == 0 {
					inQuote = 1
				} else {
					inQuote = 0
					d.InQuotes[len(d.InQuotes)-1] = 0
				}
			}
			d.Tokens = append(d.Tokens, tok)
			sentenceOpen = true

			// Sentence-final punctuation inside a quotation never splits, so
			// a quote is always contained in a single sentence.
			if endsSentence(tok) && inQuote == 0 {
				d.SentenceEnds = append(d.SentenceEnds, len(d.Tokens)-1)
				sentenceOpen = false
			}
		}
		if sentenceOpen {
			d.SentenceEnds = append(d.SentenceEnds, len(d.Tokens)-1)
			sentenceOpen = false
		}
		d.ParagraphEnds = append(d.ParagraphEnds, len(d.SentenceEnds)-1)
	}

	d.Mentions = findMentions(d.Tokens, d.SentenceEnds)
	return d
}

type xmlArticle struct {
	XMLName    xml.Name  `xml:"article"`
	Title      xmlText   `xml:"titre"`
	Paragraphs []xmlText `xml:"p"`
}

// xmlText collects the character data of an element and everything nested in
// it, the way itertext-style extraction does.
type xmlText struct {
	raw string
}

func (t *xmlText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	t.raw = b.String()
	return nil
}

// cleanText removes newlines, collapses runs of whitespace and unifies
// quotation marks.
func cleanText(s string) string {
	return NormalizeQuotes(strings.Join(strings.Fields(s), " "))
}

// findMentions returns candidate speaker mentions: runs of two or more
// consecutive capitalized tokens, ignoring sentence-initial capitals.
func findMentions(tokens []string, sentenceEnds []int) [][2]int {
	starts := make(map[int]bool, len(sentenceEnds))
	starts[0] = true
	for _, end := range sentenceEnds {
		starts[end+1] = true
	}

	var mentions [][2]int
	runStart := -1
	for i, tok := range tokens {
		if isCapitalized(tok) && !starts[i] {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart >= 2 {
			mentions = append(mentions, [2]int{runStart, i - 1})
		}
		runStart = -1
	}
	if runStart >= 0 && len(tokens)-runStart >= 2 {
		mentions = append(mentions, [2]int{runStart, len(tokens) - 1})
	}
	return mentions
}
