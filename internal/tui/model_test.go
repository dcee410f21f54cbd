package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

type fakePort struct {
	hits []domain.Hit
	err  error
	topK int
}

func (f *fakePort) Query(_ context.Context, _ string, topK int) ([]domain.Hit, error) {
	f.topK = topK
	return f.hits, f.err
}

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	m = next.(Model)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_QueryAndNavigate(t *testing.T) {
	port := &fakePort{hits: []domain.Hit{
		{RowID: 0, Distance: 0.1, Record: domain.Record{Metadata: domain.Metadata{SourceID: "a.pdf", Page: "3", Sequence: 2}, Text: "First hit."}},
		{RowID: 5, Distance: 0.4, Record: domain.Record{Metadata: domain.Metadata{SourceID: "b.csv", Page: "1", Sequence: 1}, Text: "Second hit."}},
	}}
	m := typeQuery(t, New(context.Background(), port, 4, "2 rows"), "hit")

	assert.Equal(t, 4, port.topK)
	assert.Equal(t, `2 results for "hit"`, m.status)
	assert.Contains(t, m.renderCurrentResult(), "a.pdf p.3 #2")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "Result 2/2")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
	assert.Contains(t, m.View(), "docrag index browser")
}

func TestModel_QueryError(t *testing.T) {
	m := typeQuery(t, New(context.Background(), &fakePort{err: errors.New("index not found")}, 0, ""), "x")
	assert.True(t, strings.HasPrefix(m.status, "Error: "))
	assert.Equal(t, "No results yet.", m.renderCurrentResult())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Cats purr. Vectors index passages. Dogs bark.", "vector passages")
	assert.Contains(t, out, "Cats purr.")
	assert.Contains(t, out, "Dogs bark.")
	assert.Contains(t, out, "Vectors index passages.")
}
