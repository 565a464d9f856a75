// Package faq holds the question/answer knowledge base the reply service
// grounds its answers on.
//
// Entries are loaded from a JSON file that is either a plain array of
// {"question", "answer"} objects or an object of the form {"faqs": [...]}.
// The Store matches user questions against entries with fuzzy string
// similarity and can reload itself when the file changes.
package faq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	fuzzywuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the similarity ratio (0..100) a question must exceed for Best.
	DefaultThreshold = 60

	// DefaultPartialThreshold is the partial similarity ratio a question
	// must exceed for Matches.
	DefaultPartialThreshold = 65
)

// Entry is one question/answer pair.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Match is an Entry with the score it obtained against a query.
type Match struct {
	Entry
	Score int
}

// Options configures a Store. Zero thresholds select the defaults.
type Options struct {
	Threshold        int
	PartialThreshold int
	Logger           *zap.Logger

	// OnLoad, when set, is called with the entry count after every
	// successful Reload.
	OnLoad func(count int)
}

// Store is a concurrency-safe, reloadable set of entries.
type Store struct {
	path             string
	threshold        int
	partialThreshold int
	logger           *zap.Logger
	onLoad           func(count int)

	mu      sync.RWMutex
	entries []Entry

	watchMu sync.Mutex
	watcher *watcher
}

// NewStore creates an empty Store bound to path. Call Reload to read it.
func NewStore(path string, opts Options) *Store {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.PartialThreshold <= 0 {
		opts.PartialThreshold = DefaultPartialThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		path:             path,
		threshold:        opts.Threshold,
		partialThreshold: opts.PartialThreshold,
		logger:           opts.Logger,
		onLoad:           opts.OnLoad,
	}
}

// Load creates a Store and reads path into it.
func Load(path string, opts Options) (*Store, error) {
	s := NewStore(path, opts)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore creates a Store that is not backed by a file.
func NewMemoryStore(entries []Entry, opts Options) *Store {
	s := NewStore("", opts)
	s.entries = append([]Entry(nil), entries...)
	return s
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the backing file. On error the current entries are kept,
// and an empty file never replaces a non-empty set (writers often truncate
// before writing).
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read faq file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 && s.Len() > 0 {
		return fmt.Errorf("faq file %s is empty", s.path)
	}
	entries, err := Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse faq file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("FAQ entries loaded",
		zap.String("path", s.path),
		zap.Int("count", len(entries)),
	)
	if s.onLoad != nil {
		s.onLoad(len(entries))
	}
	return nil
}

// Parse decodes either supported file shape.
func Parse(data []byte) ([]Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var wrapped struct {
		FAQs []Entry `json:"faqs"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.FAQs, nil
}

// Entries returns a copy of the current entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Best returns the entry whose question is most similar to query, compared
// case-insensitively by Levenshtein ratio. It reports false unless the top score is
// above the store threshold. Entries with an empty question are skipped and
// ties keep the earliest entry.
func (s *Store) Best(query string) (Match, bool) {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Match
	for _, e := range s.entries {
		question := strings.ToLower(e.Question)
		if question == "" {
			continue
		}
		if score := fuzzywuzzy.Ratio(q, question); score > best.Score {
			best = Match{Entry: e, Score: score}
		}
	}
	if best.Score > s.threshold {
		return best, true
	}
	return Match{}, false
}

// Matches returns every entry whose cleaned question contains something
// close to the cleaned query, scored by best partial ratio and sorted by
// descending score.
func (s *Store) Matches(query string) []Match {
	q := strings.ToLower(Clean(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, e := range s.entries {
		text := strings.ToLower(Clean(e.Question))
		if text == "" {
			continue
		}
		if score := fuzzywuzzy.PartialRatio(q, text); score > s.partialThreshold {
			matches = append(matches, Match{Entry: e, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Append adds entries in memory. Use Save to persist them.
func (s *Store) Append(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

// Save writes the entries back to the backing file as {"faqs": [...]}.
// The file is replaced atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("faq store has no backing file")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	s.mu.RLock()
	entries := s.entries
	if entries == nil {
		entries = []Entry{}
	}
	err := enc.Encode(struct {
		FAQs []Entry `json:"faqs"`
	}{FAQs: entries})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode faqs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".faqs-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write faqs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write faqs: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace faq file: %w", err)
	}

	s.logger.Info("FAQ entries saved", zap.String("path", s.path), zap.Int("count", s.Len()))
	return nil
}
