package ftssearch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/store"
)

func newTestSettings(distinct string) config.IndexSettings {
	return config.IndexSettings{
		Name:             "fts_test",
		SearchableFields: []string{"title", "description", "tags"},
		FilterableFields: []string{"genre", "year", "rating", "release_date", "series"},
		FieldTypes: map[string]config.FieldType{
			"year":         config.FieldTypeNumeric,
			"rating":       config.FieldTypeNumeric,
			"release_date": config.FieldTypeDatetime,
		},
		DistinctField: distinct,
		Backend:       config.BackendSQLite,
	}
}

var movies = []model.Document{
	{"documentID": "m0", "title": "The Matrix", "description": "A hacker discovers the simulated reality", "tags": []interface{}{"sci-fi", "action"}, "genre": "Sci-Fi", "year": 1999.0, "rating": 8.7, "release_date": "1999-03-31", "series": "matrix"},
	{"documentID": "m1", "title": "The Matrix Reloaded", "description": "Neo fights the machines again", "tags": []interface{}{"sci-fi", "sequel"}, "genre": "Sci-Fi", "year": 2003.0, "rating": 7.2, "release_date": "2003-05-15", "series": "matrix"},
	{"documentID": "m2", "title": "Inception", "description": "A thief enters dreams to plant an idea", "tags": []interface{}{"sci-fi", "heist"}, "genre": "Sci-Fi", "year": 2010.0, "rating": 8.8, "release_date": "2010-07-16"},
	{"documentID": "m3", "title": "The Godfather", "description": "The aging patriarch of a crime dynasty", "tags": []interface{}{"crime", "drama"}, "genre": "Drama", "year": 1972.0, "rating": 9.2, "release_date": "1972-03-24"},
	{"documentID": "m4", "title": "Reality Bites", "description": "Friends face reality after college", "tags": []interface{}{"comedy"}, "genre": "Comedy", "year": 1994.0, "rating": 6.6, "release_date": "1994-02-18"},
}

func entries(docs []model.Document) []store.Entry {
	out := make([]store.Entry, len(docs))
	for i, d := range docs {
		out[i] = store.Entry{ID: uint32(i), Doc: d}
	}
	return out
}

func setupSearcher(t *testing.T, distinct string) *Searcher {
	t.Helper()
	s, err := New(schema.MustNew(newTestSettings(distinct)), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.IndexDocuments(context.Background(), entries(movies)))
	return s
}

func ids(t *testing.T, s *Searcher, td *searcher.TopDocs) []string {
	t.Helper()
	out := make([]string, 0, len(td.MatchDocs))
	for _, m := range td.MatchDocs {
		doc, err := s.FetchDoc(context.Background(), m.DocID)
		require.NoError(t, err)
		out = append(out, doc["documentID"].(string))
	}
	return out
}

func find(t *testing.T, s *Searcher, text string) []string {
	t.Helper()
	q, err := s.GleanQuery(searcher.TextInput(text))
	require.NoError(t, err)
	td, err := s.TopDocs(context.Background(), q, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(td.MatchDocs)), td.TotalHits)
	return ids(t, s, td)
}

func TestNew(t *testing.T) {
	_, err := New(nil, "")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	s, err := New(schema.MustNew(newTestSettings("")), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description", "tags"}, s.fields)
	assert.Zero(t, s.DocMax())
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSearcherQueries(t *testing.T) {
	s := setupSearcher(t, "")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"term across fields", "reality", []string{"m0", "m4"}},
		{"field term", "title:matrix", []string{"m0", "m1"}},
		{"term in array field", "tags:heist", []string{"m2"}},
		{"keyword field", "genre:sci-fi", []string{"m0", "m1", "m2"}},
		{"keyword is case-insensitive", "genre:DRAMA", []string{"m3"}},
		{"keyword prefix", "genre:dra*", []string{"m3"}},
		{"numeric term", "year:1972", []string{"m3"}},
		{"phrase", `"matrix reloaded"`, []string{"m1"}},
		{"reversed phrase", `"reloaded matrix"`, nil},
		{"prefix", "title:mat*", []string{"m0", "m1"}},
		{"fuzzy degrades to exact", "matrx~1", nil},
		{"fuzzy exact word", "matrix~1", []string{"m0", "m1"}},
		{"AND", "matrix AND neo", []string{"m1"}},
		{"OR", "inception OR godfather", []string{"m2", "m3"}},
		{"excluded", "matrix -reloaded", []string{"m0"}},
		{"lone negation", "-matrix", []string{"m2", "m3", "m4"}},
		{"required and optional", "+matrix reloaded", []string{"m0", "m1"}},
		{"numeric range", "year:>2000", []string{"m1", "m2"}},
		{"inclusive numeric range", "rating:[6.6 TO 7.2]", []string{"m1", "m4"}},
		{"exclusive numeric range", "year:{1994 TO 1999}", nil},
		{"date range", "release_date:<1990-01-01", []string{"m3"}},
		{"open date range", "release_date:[2003-05-15 TO *]", []string{"m1", "m2"}},
		{"mixed", "matrix AND year:<2000", []string{"m0"}},
		{"empty text", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, find(t, s, tt.query))
		})
	}

	t.Run("optional clause boosts", func(t *testing.T) {
		assert.Equal(t, []string{"m1", "m0"}, find(t, s, "+matrix reloaded"))
	})

	t.Run("scores are positive for text matches", func(t *testing.T) {
		td, err := s.TopDocs(context.Background(), query.NewTermQuery("", "reloaded"), 10, nil)
		require.NoError(t, err)
		require.Len(t, td.MatchDocs, 1)
		assert.Greater(t, td.MatchDocs[0].Score, 0.0)
	})

	t.Run("raw FTS syntax in terms is inert", func(t *testing.T) {
		td, err := s.TopDocs(context.Background(), query.NewTermQuery("title", `matrix" OR "inception`), 10, nil)
		require.NoError(t, err)
		assert.Zero(t, td.TotalHits)
	})

	t.Run("nil query", func(t *testing.T) {
		_, err := s.TopDocs(context.Background(), nil, 10, nil)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})
}

func TestSearcherSorting(t *testing.T) {
	s := setupSearcher(t, "")
	all := query.NewMatchAllQuery()

	td, err := s.TopDocs(context.Background(), all, 3,
		searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "rating", Reverse: true}))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), td.TotalHits)
	assert.Equal(t, []string{"m3", "m2", "m0"}, ids(t, s, td))

	td, err = s.TopDocs(context.Background(), all, 2,
		searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByDocID, Reverse: true}))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), td.TotalHits)
	assert.Equal(t, []string{"m4", "m3"}, ids(t, s, td))

	td, err = s.TopDocs(context.Background(), all, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), td.TotalHits)
	assert.Empty(t, td.MatchDocs)
}

func TestSearcherHits(t *testing.T) {
	s := setupSearcher(t, "")
	sort := searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "year"})

	hits, err := s.Hits(context.Background(), searcher.QueryInput(query.NewMatchAllQuery()), 1, 2, sort)
	require.NoError(t, err)
	window, err := hits.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "m4", window[0].Doc["documentID"])
	assert.Equal(t, "m0", window[1].Doc["documentID"])

	hits, err = s.Hits(context.Background(), searcher.TextInput("matrix"), 5, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hits.TotalHits())
	assert.Zero(t, hits.Len())

	hits, err = s.Hits(context.Background(), searcher.NoQuery(), 0, 10, nil)
	require.NoError(t, err)
	assert.Zero(t, hits.TotalHits())
	assert.Zero(t, hits.Len())
}

func TestSearcherDistinct(t *testing.T) {
	s := setupSearcher(t, "series")
	q, err := s.GleanQuery(searcher.TextInput("the"))
	require.NoError(t, err)
	td, err := s.TopDocs(context.Background(), q, 10, nil)
	require.NoError(t, err)
	got := ids(t, s, td)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "m3")
	assert.Equal(t, uint32(2), td.TotalHits)
}

func TestSearcherMirrorOperations(t *testing.T) {
	s := setupSearcher(t, "")
	ctx := context.Background()
	assert.Equal(t, uint32(5), s.DocMax())

	doc, err := s.FetchDoc(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Inception", doc["title"])

	require.NoError(t, s.DeleteDocuments(ctx, []uint32{0, 4}))
	assert.Equal(t, []string{"m1"}, find(t, s, "matrix"))
	_, err = s.FetchDoc(ctx, 0)
	assert.ErrorIs(t, err, errors.ErrDocumentNotFound)

	require.NoError(t, s.IndexDocuments(ctx, []store.Entry{{ID: 1, Doc: model.Document{"documentID": "m1", "title": "Matrix Revolutions"}}}))
	assert.Equal(t, []string{"m1"}, find(t, s, "revolutions"))
	assert.Empty(t, find(t, s, "reloaded"))

	count, err := s.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	require.NoError(t, s.DeleteAllDocuments(ctx))
	assert.Zero(t, s.DocMax())
	assert.Empty(t, find(t, s, "inception"))
}

func TestSearcherClose(t *testing.T) {
	s := setupSearcher(t, "")
	require.NoError(t, s.Close())

	_, err := s.TopDocs(context.Background(), query.NewMatchAllQuery(), 10, nil)
	assert.ErrorIs(t, err, errors.ErrSearcherClosed)
	_, err = s.FetchDoc(context.Background(), 0)
	assert.ErrorIs(t, err, errors.ErrSearcherClosed)
	assert.ErrorIs(t, s.IndexDocuments(context.Background(), entries(movies)), errors.ErrSearcherClosed)
	assert.ErrorIs(t, s.DeleteAllDocuments(context.Background()), errors.ErrSearcherClosed)
}

func TestSearcherOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.db")

	s, err := New(schema.MustNew(newTestSettings("")), path)
	require.NoError(t, err)
	require.NoError(t, s.IndexDocuments(context.Background(), entries(movies)))
	require.NoError(t, s.Close())

	t.Run("reopen keeps documents", func(t *testing.T) {
		s, err := New(schema.MustNew(newTestSettings("")), path)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, uint32(5), s.DocMax())
		assert.ElementsMatch(t, []string{"m0", "m1"}, find(t, s, "matrix"))
	})

	t.Run("changed text fields reset the database", func(t *testing.T) {
		settings := newTestSettings("")
		settings.SearchableFields = []string{"title"}
		s, err := New(schema.MustNew(settings), path)
		require.NoError(t, err)
		defer s.Close()
		assert.Zero(t, s.DocMax())
		assert.Empty(t, find(t, s, "matrix"))
	})
}
