package collect

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/quotelab/quotelab/internal/config"
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/ingest"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Une visite</title></head>
<body><article>
<p>Le président Emmanuel Macron a parlé devant la presse réunie hier soir.
Il a détaillé les mesures annoncées la semaine dernière par le gouvernement.</p>
<p>« Je suis content », a-t-il déclaré aux journalistes présents sur place.</p>
</article></body></html>`

func feedXML(link string, published time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Gazette</title>
<item>
  <title>Une visite</title>
  <link>%s</link>
  <pubDate>%s</pubDate>
</item>
</channel></rss>`, link, published.Format(time.RFC1123Z))
}

func newTestServer(t *testing.T, published time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(srv.URL+"/article", published))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCollect(t *testing.T) {
	srv := newTestServer(t, time.Now())
	db := openTestDB(t)

	c := NewCollector(db, []config.Feed{{URL: srv.URL + "/feed", Name: "Gazette"}}, 0)
	result := c.Collect(7)
	if result.Collected != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	articles, err := db.AllArticles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	a := articles[0]
	if a.Name != "Une visite" || a.Source != "Gazette" {
		t.Errorf("unexpected article: %q from %q", a.Name, a.Source)
	}
	if a.SentenceCount() == 0 || len(a.Tokens) == 0 {
		t.Error("expected a tokenized article")
	}
	if len(a.Labeled) != a.SentenceCount() || len(a.Confidence) != a.SentenceCount() {
		t.Error("labelling state must match the sentence count")
	}

	// A second run skips the stored article.
	result = c.Collect(7)
	if result.Collected != 0 || result.Skipped != 1 {
		t.Errorf("expected the rerun to skip, got %+v", result)
	}
}

func TestCollectSkipsOldEntries(t *testing.T) {
	srv := newTestServer(t, time.Now().AddDate(0, 0, -30))
	db := openTestDB(t)

	c := NewCollector(db, []config.Feed{{URL: srv.URL + "/feed", Name: "Gazette"}}, 0)
	result := c.Collect(7)
	if result.Collected != 0 {
		t.Errorf("expected no articles outside the window, got %+v", result)
	}
}

func TestCollectBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	db := openTestDB(t)

	c := NewCollector(db, []config.Feed{{URL: srv.URL + "/feed", Name: "Gazette"}}, 0)
	result := c.Collect(7)
	if result.Failed != 1 {
		t.Errorf("expected one failure, got %+v", result)
	}
}

func TestNewArticleZeroState(t *testing.T) {
	doc := ingest.FromParagraphs("t", []string{"Un texte. Encore un."})
	a := NewArticle(doc, "Gazette", true)
	if !a.AdminOnly {
		t.Error("expected admin-only flag carried over")
	}
	if len(a.Labeled) != 2 || len(a.Confidence) != 2 || len(a.Predictions) != 2 {
		t.Errorf("expected zeroed state of length 2, got %+v", a)
	}
}
