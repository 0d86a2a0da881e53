package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/indexing"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/store"
)

// --- Test Helpers ---

func newTestIndexSettings() config.IndexSettings {
	return config.IndexSettings{
		Name:             "test_search_index",
		SearchableFields: []string{"title", "description", "tags"},
		FilterableFields: []string{"genre", "year", "rating", "release_date", "series"},
		FieldTypes: map[string]config.FieldType{
			"year":         config.FieldTypeNumeric,
			"rating":       config.FieldTypeNumeric,
			"release_date": config.FieldTypeDatetime,
		},
		RankingCriteria:           []config.RankingCriterion{{Field: "~score", Order: "desc"}},
		MinWordSizeFor1Typo:       4,
		MinWordSizeFor2Typos:      7,
		FieldsWithoutPrefixSearch: []string{"tags"},
	}
}

var movies = []model.Document{
	{"documentID": "m0", "title": "The Matrix", "description": "A hacker discovers the simulated reality", "tags": []interface{}{"sci-fi", "action"}, "genre": "Sci-Fi", "year": 1999.0, "rating": 8.7, "release_date": "1999-03-31", "series": "matrix"},
	{"documentID": "m1", "title": "The Matrix Reloaded", "description": "Neo fights the machines again", "tags": []interface{}{"sci-fi", "sequel"}, "genre": "Sci-Fi", "year": 2003.0, "rating": 7.2, "release_date": "2003-05-15", "series": "matrix"},
	{"documentID": "m2", "title": "Inception", "description": "A thief enters dreams to plant an idea", "tags": []interface{}{"sci-fi", "heist"}, "genre": "Sci-Fi", "year": 2010.0, "rating": 8.8, "release_date": "2010-07-16"},
	{"documentID": "m3", "title": "The Godfather", "description": "The aging patriarch of a crime dynasty", "tags": []interface{}{"crime", "drama"}, "genre": "Drama", "year": 1972.0, "rating": 9.2, "release_date": "1972-03-24"},
	{"documentID": "m4", "title": "Reality Bites", "description": "Friends face reality after college", "tags": []interface{}{"comedy"}, "genre": "Comedy", "year": 1994.0, "rating": 6.6, "release_date": "1994-02-18"},
}

type fixture struct {
	searcher *IndexSearcher
	indexer  *indexing.Service
	ii       *index.InvertedIndex
	ds       *store.DocumentStore
}

func setupIndexSearcher(t *testing.T, settings config.IndexSettings, docs []model.Document) fixture {
	t.Helper()
	sch, err := schema.New(settings)
	require.NoError(t, err)

	ii := index.New(&settings)
	ds := store.New()
	indexer, err := indexing.NewService(ii, ds, sch)
	require.NoError(t, err)
	require.NoError(t, indexer.AddDocuments(context.Background(), docs))

	s, err := NewIndexSearcher(sch, ii, ds)
	require.NoError(t, err)
	return fixture{searcher: s, indexer: indexer, ii: ii, ds: ds}
}

func docIDs(t *testing.T, s searcher.DocFetcher, td *searcher.TopDocs) []string {
	t.Helper()
	out := make([]string, 0, len(td.MatchDocs))
	for _, m := range td.MatchDocs {
		doc, err := s.FetchDoc(context.Background(), m.DocID)
		require.NoError(t, err)
		id, _ := doc.GetDocumentID()
		out = append(out, id)
	}
	return out
}

func search(t *testing.T, f fixture, text string, sort *searcher.SortSpec) []string {
	t.Helper()
	q, err := f.searcher.GleanQuery(searcher.TextInput(text))
	require.NoError(t, err)
	td, err := f.searcher.TopDocs(context.Background(), q, 100, sort)
	require.NoError(t, err)
	return docIDs(t, f.searcher, td)
}

// --- Test Cases ---

func TestNewIndexSearcher(t *testing.T) {
	settings := newTestIndexSettings()
	sch := schema.MustNew(settings)

	_, err := NewIndexSearcher(sch, nil, store.New())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = NewIndexSearcher(sch, index.New(&settings), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = NewIndexSearcher(nil, index.New(&settings), store.New())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	s, err := NewIndexSearcher(sch, index.New(&settings), store.New())
	require.NoError(t, err)
	assert.Same(t, sch, s.Schema())
}

func TestIndexSearcherTermQueries(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)

	t.Run("single term across fields", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m0", "m4"}, search(t, f, "reality", nil))
	})

	t.Run("field restricted term", func(t *testing.T) {
		assert.Equal(t, []string{"m0", "m1"}, search(t, f, "title:matrix", nil))
		assert.Empty(t, search(t, f, "description:matrix", nil))
	})

	t.Run("shorter field ranks higher", func(t *testing.T) {
		// Same term frequency; "The Matrix" is shorter than "The Matrix Reloaded"
		assert.Equal(t, []string{"m0", "m1"}, search(t, f, "matrix", nil))
	})

	t.Run("more matching terms rank higher", func(t *testing.T) {
		got := search(t, f, "matrix reloaded", nil)
		require.NotEmpty(t, got)
		assert.Equal(t, "m1", got[0])
	})

	t.Run("filterable keyword field", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m0", "m1", "m2"}, search(t, f, "genre:sci-fi", nil))
		assert.Equal(t, []string{"m3"}, search(t, f, "genre:DRAMA", nil))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, search(t, f, "zyxwv", nil))
		assert.Empty(t, search(t, f, "   ", nil))
	})
}

func TestIndexSearcherTypoTolerance(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)

	t.Run("one typo on a long enough word", func(t *testing.T) {
		assert.Equal(t, []string{"m0", "m1"}, search(t, f, "matrx", nil))
	})

	t.Run("short words need exact matches", func(t *testing.T) {
		assert.Empty(t, search(t, f, "neu", nil))
	})

	t.Run("typo matches score below exact matches", func(t *testing.T) {
		exact, err := f.searcher.TopDocs(context.Background(), query.NewTermQuery("description", "reality"), 10, nil)
		require.NoError(t, err)
		typo, err := f.searcher.TopDocs(context.Background(), query.NewFuzzyQuery("description", "realty", 1), 10, nil)
		require.NoError(t, err)
		require.Equal(t, len(exact.MatchDocs), len(typo.MatchDocs))
		for i := range exact.MatchDocs {
			assert.InDelta(t, exact.MatchDocs[i].Score*oneTypoPenalty, typo.MatchDocs[i].Score, 1e-9)
		}
	})

	t.Run("explicit fuzziness", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m2"}, search(t, f, "inceptoin~1", nil))
		assert.Empty(t, search(t, f, "incpetoin~1", nil))
		assert.ElementsMatch(t, []string{"m2"}, search(t, f, "incpetoin~2", nil))

		td, err := f.searcher.TopDocs(context.Background(), query.NewFuzzyQuery("", "matrx", 0), 10, nil)
		require.NoError(t, err)
		assert.Zero(t, td.TotalHits, "zero edits means exact matching only")
	})

	t.Run("fields without typo tolerance", func(t *testing.T) {
		settings := newTestIndexSettings()
		settings.NoTypoToleranceFields = []string{"title", "description"}
		g := setupIndexSearcher(t, settings, movies)
		assert.Empty(t, search(t, g, "matrx", nil))
	})

	t.Run("new terms need a typo dictionary refresh", func(t *testing.T) {
		g := setupIndexSearcher(t, newTestIndexSettings(), movies)
		require.NoError(t, g.indexer.AddDocuments(context.Background(), []model.Document{
			{"documentID": "m5", "title": "Interstellar"},
		}))
		assert.Empty(t, search(t, g, "interstelar", nil))
		g.searcher.UpdateTypoFinder()
		assert.Equal(t, []string{"m5"}, search(t, g, "interstelar", nil))
	})
}

func TestIndexSearcherPhraseAndPrefix(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)

	t.Run("phrase needs adjacent terms", func(t *testing.T) {
		assert.Equal(t, []string{"m1"}, search(t, f, `"matrix reloaded"`, nil))
		assert.Empty(t, search(t, f, `"reloaded matrix"`, nil))
		assert.Equal(t, []string{"m3"}, search(t, f, `description:"crime dynasty"`, nil))
	})

	t.Run("phrase does not cross array values", func(t *testing.T) {
		assert.Empty(t, search(t, f, `tags:"fi action"`, nil))
		assert.ElementsMatch(t, []string{"m0", "m1", "m2"}, search(t, f, `tags:"sci fi"`, nil))
	})

	t.Run("prefix on n-gram fields", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m0", "m1"}, search(t, f, "title:mat*", nil))
		assert.ElementsMatch(t, []string{"m2"}, search(t, f, "title:incep*", nil))
	})

	t.Run("prefix on fields without n-grams", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m1"}, search(t, f, "tags:seq*", nil))
		assert.ElementsMatch(t, []string{"m2"}, search(t, f, "tags:hei*", nil))
	})

	t.Run("prefix on stored keyword field", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"m3"}, search(t, f, "genre:dra*", nil))
	})
}

func TestIndexSearcherBooleanQueries(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"AND", "matrix AND neo", []string{"m1"}},
		{"OR", "inception OR godfather", []string{"m2", "m3"}},
		{"required and optional", "+matrix reloaded", []string{"m0", "m1"}},
		{"excluded", "matrix -reloaded", []string{"m0"}},
		{"lone negation", "-matrix", []string{"m2", "m3", "m4"}},
		{"NOT keyword", "reality AND NOT comedy", []string{"m0"}},
		{"grouping", "(inception OR godfather) AND crime", []string{"m3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, search(t, f, tt.query, nil))
		})
	}

	t.Run("optional clause boosts", func(t *testing.T) {
		got := search(t, f, "+matrix reloaded", nil)
		assert.Equal(t, []string{"m1", "m0"}, got)
	})

	t.Run("match all and no match", func(t *testing.T) {
		td, err := f.searcher.TopDocs(context.Background(), query.NewMatchAllQuery(), 10, nil)
		require.NoError(t, err)
		assert.Equal(t, uint32(5), td.TotalHits)

		td, err = f.searcher.TopDocs(context.Background(), query.NewNoMatchQuery(), 10, nil)
		require.NoError(t, err)
		assert.Zero(t, td.TotalHits)
		assert.Empty(t, td.MatchDocs)
	})

	t.Run("empty AND matches nothing", func(t *testing.T) {
		td, err := f.searcher.TopDocs(context.Background(), query.NewANDQuery(), 10, nil)
		require.NoError(t, err)
		assert.Zero(t, td.TotalHits)
	})
}

func TestIndexSearcherRangeQueries(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"greater than", "year:>2000", []string{"m1", "m2"}},
		{"at most", "rating:<=7.2", []string{"m1", "m4"}},
		{"inclusive bracket", "year:[1994 TO 1999]", []string{"m0", "m4"}},
		{"exclusive bracket", "year:{1994 TO 1999}", nil},
		{"open upper", "year:[2003 TO *]", []string{"m1", "m2"}},
		{"dates", "release_date:<1990-01-01", []string{"m3"}},
		{"combined with text", "matrix AND year:<2000", []string{"m0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, search(t, f, tt.query, nil))
		})
	}
}

func TestIndexSearcherSorting(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	all := query.NewMatchAllQuery()

	td, err := f.searcher.TopDocs(context.Background(), all, 3, searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "rating", Reverse: true}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2", "m0"}, docIDs(t, f.searcher, td))
	assert.Equal(t, uint32(5), td.TotalHits)

	td, err = f.searcher.TopDocs(context.Background(), all, 2, searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "year"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, docIDs(t, f.searcher, td))

	td, err = f.searcher.TopDocs(context.Background(), all, 10, searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByDocID, Reverse: true}))
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m3", "m2", "m1", "m0"}, docIDs(t, f.searcher, td))

	_, err = f.searcher.TopDocs(context.Background(), all, 10, searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField}))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestIndexSearcherDistinct(t *testing.T) {
	settings := newTestIndexSettings()
	settings.DistinctField = "series"
	f := setupIndexSearcher(t, settings, movies)

	got := search(t, f, "the", nil)
	assert.Contains(t, got, "m3")
	assert.Len(t, got, 2, "one Matrix film plus The Godfather")
}

func TestIndexSearcherHitsWindow(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	sort := searcher.NewSortSpec(searcher.SortRule{Type: searcher.SortByField, Field: "year"})

	hits, err := f.searcher.Hits(context.Background(), searcher.QueryInput(query.NewMatchAllQuery()), 1, 2, sort)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), hits.TotalHits())

	window, err := hits.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "m4", window[0].Doc["documentID"])
	assert.Equal(t, "m0", window[1].Doc["documentID"])

	hits, err = f.searcher.Hits(context.Background(), searcher.TextInput("matrix"), 10, 10, nil)
	require.NoError(t, err)
	assert.Zero(t, hits.Len())
}

func TestIndexSearcherDeletedDocuments(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	require.NoError(t, f.indexer.DeleteDocument(context.Background(), "m0"))

	assert.Equal(t, []string{"m1"}, search(t, f, "matrix", nil))
	assert.NotContains(t, search(t, f, "-inception", nil), "m0")
	assert.Equal(t, uint32(5), f.searcher.DocMax(), "doc numbers are not reused")

	_, err := f.searcher.FetchDoc(context.Background(), 0)
	assert.ErrorIs(t, err, errors.ErrDocumentNotFound)
}

func TestIndexSearcherHitsAfterDeleteAll(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	ctx := context.Background()

	hits, err := f.searcher.Hits(ctx, searcher.TextInput("matrix"), 0, 10, nil)
	require.NoError(t, err)
	require.Equal(t, 2, hits.Len())

	require.NoError(t, f.indexer.DeleteAllDocuments(ctx))
	require.NoError(t, f.indexer.AddDocuments(ctx, []model.Document{
		{"documentID": "n0", "title": "Replacement"},
		{"documentID": "n1", "title": "Another Replacement"},
	}))

	// Old numbers miss rather than naming the new documents.
	_, err = hits.Collect(ctx)
	assert.ErrorIs(t, err, errors.ErrDocumentNotFound)
	assert.Equal(t, []string{"n1"}, search(t, f, "another", nil))
	assert.Equal(t, uint32(7), f.searcher.DocMax())
}

func TestIndexSearcherCancellation(t *testing.T) {
	docs := make([]model.Document, 20)
	for i := range docs {
		docs[i] = model.Document{"documentID": fmt.Sprintf("d%d", i), "title": "common words"}
	}
	f := setupIndexSearcher(t, newTestIndexSettings(), docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.searcher.TopDocs(ctx, query.NewTermQuery("", "common"), 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexSearcherClose(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	require.NoError(t, f.searcher.Close())

	_, err := f.searcher.TopDocs(context.Background(), query.NewMatchAllQuery(), 10, nil)
	assert.ErrorIs(t, err, errors.ErrSearcherClosed)
	_, err = f.searcher.Hits(context.Background(), searcher.TextInput("matrix"), 0, 10, nil)
	assert.ErrorIs(t, err, errors.ErrSearcherClosed)
	_, err = f.searcher.FetchDoc(context.Background(), 0)
	assert.ErrorIs(t, err, errors.ErrSearcherClosed)

	// The schema stays readable after close
	assert.Equal(t, "test_search_index", f.searcher.Schema().Name())
}

func TestIndexSearcherUnsupportedQuery(t *testing.T) {
	f := setupIndexSearcher(t, newTestIndexSettings(), movies)
	_, err := f.searcher.TopDocs(context.Background(), nil, 10, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}
