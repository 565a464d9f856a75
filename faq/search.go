package faq

import "github.com/sahilm/fuzzy"

// questions adapts a slice of entries to fuzzy.Source.
type questions []Entry

func (q questions) String(i int) string { return q[i].Question }
func (q questions) Len() int            { return len(q) }

// Search filters entries whose question contains the characters of pattern
// in order, best matches first. It is meant for interactive lookups rather
// than for answering questions.
func (s *Store) Search(pattern string) []Entry {
	entries := s.Entries()
	if pattern == "" {
		return entries
	}

	found := fuzzy.FindFrom(pattern, questions(entries))
	out := make([]Entry, 0, len(found))
	for _, m := range found {
		out = append(out, entries[m.Index])
	}
	return out
}
