package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeTrailingWhitespace(t *testing.T) {
	got := Tokenize(`Il a dit: "Non."`)
	want := []string{"Il ", "a ", "dit", ": ", `"`, "Non", ".", `"`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Join(got, "") != `Il a dit: "Non."` {
		t.Errorf("tokens do not rebuild the text: %q", strings.Join(got, ""))
	}
}

func TestTokenizeElision(t *testing.T) {
	got := Tokenize("l'ancien ministre")
	want := []string{"l'", "ancien ", "ministre"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeQuotes(t *testing.T) {
	got := NormalizeQuotes("«Oui», “non”, „peut-être”")
	want := `"Oui", "non", "peut-être"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFromParagraphs(t *testing.T) {
	d := FromParagraphs("Une visite", []string{
		`Le président Emmanuel Macron a parlé. "Je suis content", a-t-il dit.`,
		"Il est parti.",
	})

	wantTokens := []string{
		"Le ", "président ", "Emmanuel ", "Macron ", "a ", "parlé", ". ",
		`"`, "Je ", "suis ", "content", `"`, ", ", "a-t-il ", "dit", ".",
		"Il ", "est ", "parti", ".",
	}
	if !reflect.DeepEqual(d.Tokens, wantTokens) {
		t.Fatalf("tokens:\ngot  %q\nwant %q", d.Tokens, wantTokens)
	}

	if want := []int{6, 15, 19}; !reflect.DeepEqual(d.SentenceEnds, want) {
		t.Errorf("sentence ends: got %v, want %v", d.SentenceEnds, want)
	}
	if want := []int{1, 2}; !reflect.DeepEqual(d.ParagraphEnds, want) {
		t.Errorf("paragraph ends: got %v, want %v", d.ParagraphEnds, want)
	}

	wantQuotes := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !reflect.DeepEqual(d.InQuotes, wantQuotes) {
		t.Errorf("in_quotes: got %v, want %v", d.InQuotes, wantQuotes)
	}

	if want := [][2]int{{2, 3}}; !reflect.DeepEqual(d.Mentions, want) {
		t.Errorf("mentions: got %v, want %v", d.Mentions, want)
	}
}

func TestQuoteNeverSplitsSentence(t *testing.T) {
	// The period inside the quotation must not end the sentence.
	d := FromParagraphs("t", []string{`"Je pars. Demain." Il rit.`})
	if len(d.SentenceEnds) != 1 {
		t.Errorf("expected one sentence, got ends %v", d.SentenceEnds)
	}
}

func TestParagraphForcesSentenceEnd(t *testing.T) {
	d := FromParagraphs("t", []string{"Un titre sans ponctuation", "Puis un texte."})
	if want := []int{3, 7}; !reflect.DeepEqual(d.SentenceEnds, want) {
		t.Errorf("sentence ends: got %v, want %v", d.SentenceEnds, want)
	}
	if want := []int{0, 1}; !reflect.DeepEqual(d.ParagraphEnds, want) {
		t.Errorf("paragraph ends: got %v, want %v", d.ParagraphEnds, want)
	}
}

func TestParseXML(t *testing.T) {
	data := []byte(`<article>
		<titre>Une <b>grande</b> visite</titre>
		<p>Le président Emmanuel Macron a parlé.</p>
		<p>Il est parti.</p>
	</article>`)

	d, err := ParseXML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Une grande visite" {
		t.Errorf("got name %q", d.Name)
	}
	if len(d.ParagraphEnds) != 2 {
		t.Errorf("expected 2 paragraphs, got %v", d.ParagraphEnds)
	}
	if d.Text != "Le président Emmanuel Macron a parlé.\nIl est parti." {
		t.Errorf("got text %q", d.Text)
	}
}

func TestParseXMLWithoutTitle(t *testing.T) {
	d, err := ParseXML([]byte(`<article><p>Un texte.</p></article>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "No article title" {
		t.Errorf("got name %q", d.Name)
	}
}

func TestParseXMLEmpty(t *testing.T) {
	if _, err := ParseXML([]byte(`<article><titre>t</titre></article>`)); err == nil {
		t.Error("expected an error for an article without paragraphs")
	}
}
