package faq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// MinPageText is the length a page's text must exceed to be kept.
	MinPageText = 100

	// MaxAnswerText is the number of characters of page text kept as the
	// answer.
	MaxAnswerText = 1000
)

// Page is a site page turned into an FAQ entry by the Scraper.
type Page struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Question returns the generated question for the page, with underscores
// in the name read as spaces.
func (p Page) Question() string {
	return fmt.Sprintf("What information can I find on the %s page?", strings.ReplaceAll(p.Name, "_", " "))
}

// Scraper fetches static pages and converts their readable text into
// entries.
type Scraper struct {
	client *http.Client
	logger *zap.Logger
}

// NewScraper creates a Scraper. A nil client gets a 30 second timeout.
func NewScraper(client *http.Client, logger *zap.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{client: client, logger: logger}
}

// Scrape visits every page in order. Pages that fail to load or carry too
// little text are logged and skipped; only a canceled context aborts the
// run.
func (s *Scraper) Scrape(ctx context.Context, pages []Page) ([]Entry, error) {
	var entries []Entry
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		s.logger.Info("Scraping page", zap.String("name", p.Name), zap.String("url", p.URL))
		text, err := s.fetch(ctx, p.URL)
		if err != nil {
			s.logger.Warn("Failed to scrape page", zap.String("url", p.URL), zap.Error(err))
			continue
		}
		if utf8.RuneCountInString(text) <= MinPageText {
			s.logger.Warn("No readable content found", zap.String("url", p.URL))
			continue
		}

		entries = append(entries, Entry{
			Question: p.Question(),
			Answer:   truncate(text, MaxAnswerText),
		})
		s.logger.Info("Page scraped", zap.String("name", p.Name), zap.Int("chars", len(text)))
	}
	return entries, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return ExtractText(resp.Body)
}

// ExtractText returns the visible text of an HTML document's body with
// whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
