// Package collect polls the configured news feeds, pulls the full article
// text and ingests new articles into the labelling pool.
package collect

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/quotelab/quotelab/internal/config"
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/ingest"
)

const maxPerFeed = 20

// Result holds the results of a collection run.
type Result struct {
	Collected int
	Skipped   int
	Failed    int
}

// Collector turns feed entries into ingested articles.
type Collector struct {
	db     *database.DB
	feeds  []config.Feed
	client *http.Client
}

// NewCollector creates a Collector over the configured feeds.
func NewCollector(db *database.DB, feeds []config.Feed, timeout time.Duration) *Collector {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Collector{
		db:    db,
		feeds: feeds,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Collect parses every configured feed and ingests the entries published
// within daysBack that are not yet stored.
func (c *Collector) Collect(daysBack int) *Result {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	result := &Result{}

	parser := gofeed.NewParser()
	for _, fc := range c.feeds {
		name := fc.Name
		if name == "" {
			name = sourceNameFromURL(fc.URL)
		}

		feed, err := parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			result.Failed++
			continue
		}

		collected := 0
		for _, item := range feed.Items {
			if collected >= maxPerFeed {
				break
			}
			if !withinWindow(item, cutoff) {
				continue
			}
			switch c.collectItem(item, name) {
			case itemCollected:
				collected++
				result.Collected++
			case itemSkipped:
				result.Skipped++
			case itemFailed:
				result.Failed++
			}
		}
		log.Printf("Collected %d articles from %s", collected, name)
	}

	return result
}

type itemOutcome int

const (
	itemCollected itemOutcome = iota
	itemSkipped
	itemFailed
)

func (c *Collector) collectItem(item *gofeed.Item, source string) itemOutcome {
	title := strings.TrimSpace(item.Title)
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if title == "" || link == "" {
		return itemSkipped
	}

	exists, err := c.db.ArticleExists(title, source)
	if err != nil {
		log.Printf("Lookup failed for %q: %v", title, err)
		return itemFailed
	}
	if exists {
		return itemSkipped
	}

	paragraphs, err := c.fetchParagraphs(link)
	if err != nil {
		log.Printf("Fetch failed for %s: %v", link, err)
		return itemFailed
	}
	if len(paragraphs) == 0 {
		log.Printf("No extractable content from: %s", link)
		return itemFailed
	}

	doc := ingest.FromParagraphs(title, paragraphs)
	if _, err := c.db.InsertArticle(NewArticle(doc, source, false)); err != nil {
		log.Printf("Insert failed for %q: %v", title, err)
		return itemFailed
	}
	log.Printf("Collected: %s", title)
	return itemCollected
}

// fetchParagraphs downloads an article page and extracts its readable text as
// a list of paragraphs.
func (c *Collector) fetchParagraphs(articleURL string) ([]string, error) {
	req, err := http.NewRequest("GET", articleURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "quotelab/1.0 (annotation corpus collector)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	parsedURL, _ := url.Parse(articleURL)
	page, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil, err
	}

	var paragraphs []string
	for _, line := range strings.Split(page.TextContent, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 0 {
			paragraphs = append(paragraphs, line)
		}
	}
	return paragraphs, nil
}

// NewArticle wraps an ingested document as a database article with zeroed
// labelling state.
func NewArticle(doc *ingest.Document, source string, adminOnly bool) *database.Article {
	n := len(doc.SentenceEnds)
	return &database.Article{
		Name:          doc.Name,
		Source:        source,
		Text:          doc.Text,
		Tokens:        doc.Tokens,
		SentenceEnds:  doc.SentenceEnds,
		ParagraphEnds: doc.ParagraphEnds,
		InQuotes:      doc.InQuotes,
		Mentions:      doc.Mentions,
		Labeled:       make([]int, n),
		Confidence:    make([]float64, n),
		Predictions:   make([]int, n),
		AdminOnly:     adminOnly,
	}
}

func withinWindow(item *gofeed.Item, cutoff time.Time) bool {
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil {
		return true // benefit of the doubt
	}
	return !published.Before(cutoff)
}

func sourceNameFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
