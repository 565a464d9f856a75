package faq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var sample = []Entry{
	{Question: "How do I list my property?", Answer: "Use the Add Listing button."},
	{Question: "What are your office hours?", Answer: "9am to 5pm, Monday to Friday."},
	{Question: "", Answer: "orphan answer"},
	{Question: "Can I rent without a deposit?", Answer: "Some landlords accept guarantors."},
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "faqs.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "array", data: `[{"question":"q","answer":"a"}]`, want: 1},
		{name: "wrapped", data: `{"faqs":[{"question":"q","answer":"a"},{"question":"r","answer":"b"}]}`, want: 2},
		{name: "empty file", data: "  ", want: 0},
		{name: "object without faqs", data: `{"other":1}`, want: 0},
		{name: "broken", data: `{"faqs":[`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestStore_Best(t *testing.T) {
	s := NewMemoryStore(sample, Options{})

	m, ok := s.Best("what are your office hours")
	require.True(t, ok)
	assert.Equal(t, "9am to 5pm, Monday to Friday.", m.Answer)
	assert.Greater(t, m.Score, DefaultThreshold)

	m, ok = s.Best("HOW DO I LIST MY PROPERTY?")
	require.True(t, ok)
	assert.Equal(t, 100, m.Score)

	_, ok = s.Best("tell me a joke about penguins")
	assert.False(t, ok)

	_, ok = s.Best("")
	assert.False(t, ok)
}

func TestStore_BestThreshold(t *testing.T) {
	strict := NewMemoryStore(sample, Options{Threshold: 99})
	_, ok := strict.Best("what are your office hours")
	assert.False(t, ok)

	_, ok = strict.Best("what are your office hours?")
	assert.True(t, ok)
}

func TestStore_Matches(t *testing.T) {
	s := NewMemoryStore(sample, Options{})

	matches := s.Matches("<b>office hours</b>")
	require.NotEmpty(t, matches)
	assert.Equal(t, "What are your office hours?", matches[0].Question)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}

	assert.Empty(t, s.Matches("   "))
	assert.Empty(t, s.Matches("zzzzzzzz"))
}

func TestStore_Search(t *testing.T) {
	s := NewMemoryStore(sample, Options{})

	found := s.Search("deposit")
	require.Len(t, found, 1)
	assert.Equal(t, "Can I rent without a deposit?", found[0].Question)
	assert.Len(t, s.Search(""), len(sample))
}

func TestStore_LoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `[{"question":"q1","answer":"a1"}]`)

	s, err := Load(path, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.Append(Entry{Question: "q2 <b>", Answer: "a2 & more"})
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{`+"\n"+`  "faqs": [`))
	assert.Contains(t, string(data), `"q2 <b>"`)

	reloaded, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, s.Entries(), reloaded.Entries())
}

func TestStore_ReloadKeepsEntriesOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `{"faqs":[{"question":"q","answer":"a"}]}`)

	s, err := Load(path, Options{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"faqs":[`), 0o644))
	assert.Error(t, s.Reload())
	assert.Equal(t, 1, s.Len())
}

func TestStore_OnLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]`)

	var counts []int
	s, err := Load(path, Options{OnLoad: func(n int) { counts = append(counts, n) }})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[{"question":"q","answer":"a"}]`), 0o644))
	require.NoError(t, s.Reload())

	require.NoError(t, os.WriteFile(path, []byte(`[`), 0o644))
	require.Error(t, s.Reload())

	assert.Equal(t, []int{2, 1}, counts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.Error(t, err)
}

func TestStore_SaveWithoutFile(t *testing.T) {
	assert.Error(t, NewMemoryStore(nil, Options{}).Save())
}

func TestStore_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `[{"question":"q","answer":"a"}]`)

	s, err := Load(path, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, s.Watch())
	defer s.Close()

	require.NoError(t, os.WriteFile(path, []byte(`[{"question":"q","answer":"a"},{"question":"r","answer":"b"}]`), 0o644))

	require.Eventually(t, func() bool {
		return s.Len() == 2
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
