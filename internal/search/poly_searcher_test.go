package search

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
)

// failingSearcher reports a fixed document count and fails every query.
type failingSearcher struct {
	*searcher.Core
	err error
}

func newFailingSearcher(t *testing.T, sch *schema.Schema, err error) *failingSearcher {
	t.Helper()
	f := &failingSearcher{err: err}
	core, cerr := searcher.NewCore(sch, f)
	require.NoError(t, cerr)
	f.Core = core
	return f
}

func (f *failingSearcher) TopDocs(context.Context, query.Query, uint32, *searcher.SortSpec) (*searcher.TopDocs, error) {
	return nil, f.err
}

func (f *failingSearcher) DocMax() uint32 { return 3 }

// splitMovies indexes the movies into two searchers sharing one schema.
func splitMovies(t *testing.T) (*PolySearcher, fixture, fixture) {
	t.Helper()
	settings := newTestIndexSettings()
	left := setupIndexSearcher(t, settings, movies[:2])
	right := setupIndexSearcher(t, settings, movies[2:])

	p, err := NewPolySearcher(left.searcher.Schema(), []searcher.Searcher{left.searcher, right.searcher})
	require.NoError(t, err)
	return p, left, right
}

func TestNewPolySearcher(t *testing.T) {
	settings := newTestIndexSettings()
	f := setupIndexSearcher(t, settings, movies)

	t.Run("nil searcher", func(t *testing.T) {
		_, err := NewPolySearcher(f.searcher.Schema(), []searcher.Searcher{f.searcher, nil})
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})

	t.Run("incompatible schema", func(t *testing.T) {
		other := settings
		other.FieldTypes = map[string]config.FieldType{"year": config.FieldTypeKeyword}
		g := setupIndexSearcher(t, other, nil)
		_, err := NewPolySearcher(f.searcher.Schema(), []searcher.Searcher{f.searcher, g.searcher})
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})

	t.Run("no searchers", func(t *testing.T) {
		p, err := NewPolySearcher(f.searcher.Schema(), nil)
		require.NoError(t, err)
		td, err := p.TopDocs(context.Background(), query.NewMatchAllQuery(), 10, nil)
		require.NoError(t, err)
		assert.Zero(t, td.TotalHits)
		assert.Zero(t, p.DocMax())
	})

	t.Run("subs are copied", func(t *testing.T) {
		subs := []searcher.Searcher{f.searcher}
		p, err := NewPolySearcher(f.searcher.Schema(), subs)
		require.NoError(t, err)
		subs[0] = nil
		assert.Len(t, p.Searchers(), 1)
		assert.NotNil(t, p.Searchers()[0])
	})
}

func TestPolySearcherRebasesDocuments(t *testing.T) {
	p, left, right := splitMovies(t)
	assert.Equal(t, uint32(2), left.searcher.DocMax())
	assert.Equal(t, uint32(5), p.DocMax())

	td, err := p.TopDocs(context.Background(), query.NewMatchAllQuery(), 10,
		searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByDocID}))
	require.NoError(t, err)
	require.Len(t, td.MatchDocs, 5)
	for i, m := range td.MatchDocs {
		assert.Equal(t, uint32(i), m.DocID)
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, docIDs(t, p, td))

	// Document 2 of the poly searcher is document 0 of the right searcher
	doc, err := p.FetchDoc(context.Background(), 2)
	require.NoError(t, err)
	want, err := right.searcher.FetchDoc(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, want, doc)

	_, err = p.FetchDoc(context.Background(), 5)
	assert.ErrorIs(t, err, errors.ErrDocumentNotFound)
}

func TestPolySearcherLocate(t *testing.T) {
	p, _, _ := splitMovies(t)

	sub, local, ok := p.Locate(1)
	assert.True(t, ok)
	assert.Equal(t, 0, sub)
	assert.Equal(t, uint32(1), local)

	sub, local, ok = p.Locate(4)
	assert.True(t, ok)
	assert.Equal(t, 1, sub)
	assert.Equal(t, uint32(2), local)

	_, _, ok = p.Locate(5)
	assert.False(t, ok)
}

func TestPolySearcherHitsSurviveGrowingSubs(t *testing.T) {
	p, left, _ := splitMovies(t)
	ctx := context.Background()

	hits, err := p.Hits(ctx, searcher.TextInput("inception"), 0, 10, nil)
	require.NoError(t, err)
	require.Equal(t, 1, hits.Len())
	assert.Equal(t, uint32(2), hits.MatchDocs()[0].DocID)

	// Left grows between ranking and fetching: combined number 2 now falls
	// inside left under the live offsets.
	require.NoError(t, left.indexer.AddDocuments(ctx, []model.Document{
		{"documentID": "late", "title": "Late Arrival"},
	}))
	sub, _, ok := p.Locate(2)
	require.True(t, ok)
	require.Equal(t, 0, sub)

	view, ok := hits.Fetcher().(*PolyView)
	require.True(t, ok)
	sub, local, ok := view.Locate(2)
	require.True(t, ok)
	assert.Equal(t, 1, sub)
	assert.Equal(t, uint32(0), local)

	window, err := hits.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, window, 1)
	id, _ := window[0].Doc.GetDocumentID()
	assert.Equal(t, "m2", id)
}

func TestPolySearcherMergesByRanking(t *testing.T) {
	p, _, _ := splitMovies(t)

	td, err := p.TopDocs(context.Background(), query.NewMatchAllQuery(), 3,
		searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "rating", Reverse: true}))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), td.TotalHits)
	assert.Equal(t, []string{"m3", "m2", "m0"}, docIDs(t, p, td))

	hits, err := p.Hits(context.Background(), searcher.TextInput("reality OR godfather"), 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), hits.TotalHits())
	window, err := hits.Collect(context.Background())
	require.NoError(t, err)
	got := make([]string, len(window))
	for i, h := range window {
		got[i] = h.Doc["documentID"].(string)
	}
	assert.ElementsMatch(t, []string{"m0", "m3", "m4"}, got)
	for i := 1; i < len(window); i++ {
		assert.GreaterOrEqual(t, window[i-1].Score, window[i].Score)
	}
}

func TestPolySearcherWindow(t *testing.T) {
	p, _, _ := splitMovies(t)
	sort := searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "year"})

	hits, err := p.Hits(context.Background(), searcher.NoQuery(), 0, 10, sort)
	require.NoError(t, err)
	assert.Zero(t, hits.TotalHits())

	hits, err = p.Hits(context.Background(), searcher.QueryInput(query.NewMatchAllQuery()), 3, 10, sort)
	require.NoError(t, err)
	window, err := hits.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "m1", window[0].Doc["documentID"])
	assert.Equal(t, "m2", window[1].Doc["documentID"])
}

func TestPolySearcherPropagatesErrors(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	boom := stderrors.New("backend unavailable")
	failing := newFailingSearcher(t, f.searcher.Schema(), boom)

	p, err := NewPolySearcher(f.searcher.Schema(), []searcher.Searcher{f.searcher, failing})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), p.DocMax())

	_, err = p.TopDocs(context.Background(), query.NewMatchAllQuery(), 10, nil)
	assert.ErrorIs(t, err, boom)

	// The failing searcher cannot fetch documents
	_, err = p.FetchDoc(context.Background(), 6)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = p.TopDocs(context.Background(), query.NewMatchAllQuery(), 10,
		searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField}))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestPolySearcherCloseLeavesSubsOpen(t *testing.T) {
	p, left, _ := splitMovies(t)
	require.NoError(t, p.Close())

	_, err := left.searcher.TopDocs(context.Background(), query.NewMatchAllQuery(), 1, nil)
	assert.NoError(t, err)
}
