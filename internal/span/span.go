// Package span provides pure index arithmetic over an article's boundary
// arrays: the last-token index of each sentence, the last-sentence index of
// each paragraph, and the per-token in-quote flags. All ranges are inclusive
// on both ends; out-of-range inputs yield the (-1, -1) sentinel instead of
// panicking so callers at the article edges degrade gracefully.
package span

// TokenRange returns the first and last token index covered by the sentences
// [firstSent, lastSent]. Returns (-1, -1) if the range is invalid.
func TokenRange(sentenceEnds []int, firstSent, lastSent int) (int, int) {
	if firstSent < 0 || lastSent >= len(sentenceEnds) || firstSent > lastSent {
		return -1, -1
	}
	first := 0
	if firstSent > 0 {
		first = sentenceEnds[firstSent-1] + 1
	}
	return first, sentenceEnds[lastSent]
}

// ParagraphSentences returns the first and last sentence index of a
// paragraph. Returns (-1, -1) if the paragraph index is out of range.
func ParagraphSentences(paragraphEnds []int, paragraph int) (int, int) {
	if paragraph < 0 || paragraph >= len(paragraphEnds) {
		return -1, -1
	}
	first := 0
	if paragraph > 0 {
		first = paragraphEnds[paragraph-1] + 1
	}
	return first, paragraphEnds[paragraph]
}

// SentenceContaining returns the index of the sentence that contains the
// given token, or -1 if the token lies past the last sentence end.
func SentenceContaining(sentenceEnds []int, token int) int {
	if token < 0 {
		return -1
	}
	for i, end := range sentenceEnds {
		if token <= end {
			return i
		}
	}
	return -1
}

// QuoteStart scans backward from a token inside a quotation span and returns
// the index of the sentence containing the last token before the quote opens,
// or the first sentence if the quote starts the article.
func QuoteStart(sentenceEnds, inQuotes []int, token int) int {
	for token > 0 && inQuotes[token] == 1 {
		token--
	}
	return SentenceContaining(sentenceEnds, token)
}

// QuoteEnd scans forward from a token inside a quotation span and returns the
// index of the sentence containing the first token after the quote closes, or
// the last sentence if the quote runs to the end of the article.
func QuoteEnd(sentenceEnds, inQuotes []int, token int) int {
	for token < len(inQuotes) && inQuotes[token] == 1 {
		token++
	}
	if token >= len(inQuotes) {
		return len(sentenceEnds) - 1
	}
	return SentenceContaining(sentenceEnds, token)
}
