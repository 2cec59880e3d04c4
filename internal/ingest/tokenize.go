package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// quoteRunes are the quotation marks unified to a plain double quote before
// tokenization.
const quoteRunes = "«»“”„‹›‟〝〞"

// NormalizeQuotes replaces every typographic quotation mark with a plain
// double quote so quote tracking only deals with one character.
func NormalizeQuotes(text string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(quoteRunes, r) {
			return '"'
		}
		return r
	}, text)
}

// Tokenize splits a paragraph into tokens, attaching each token's trailing
// whitespace to it so the paragraph is a plain join of its tokens.
// Punctuation becomes its own token; an elision apostrophe closes the token
// it ends ("l'ancien" becomes "l'" and "ancien").
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
			if len(tokens) > 0 && !strings.HasSuffix(tokens[len(tokens)-1], " ") {
				tokens[len(tokens)-1] += " "
			}
		case isTokenPunct(r):
			flush()
			tokens = append(tokens, string(r))
		case r == '\'' || r == '’':
			cur.WriteRune('\'')
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isTokenPunct(r rune) bool {
	switch r {
	case '"', '.', ',', '!', '?', ';', ':', '(', ')', '[', ']', '…':
		return true
	}
	return false
}

// endsSentence reports whether a token is sentence-final punctuation.
func endsSentence(tok string) bool {
	switch strings.TrimRight(tok, " ") {
	case ".", "!", "?", "…":
		return true
	}
	return false
}

// isCapitalized reports whether a token starts with an upper-case letter.
func isCapitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimRight(tok, " "))
	return unicode.IsUpper(r)
}
