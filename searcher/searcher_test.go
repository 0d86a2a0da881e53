package searcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
)

// fakeSearcher ranks a fixed number of documents: a NoMatchQuery returns
// nothing, anything else matches every document with score docCount-id.
type fakeSearcher struct {
	*Core
	docCount uint32
	err      error

	mu        sync.Mutex
	requested []uint32
	queries   []query.Query
}

func newFake(t *testing.T, docCount uint32, opts ...CoreOption) *fakeSearcher {
	t.Helper()
	f := &fakeSearcher{docCount: docCount}
	core, err := NewCore(testSchema(), f, opts...)
	require.NoError(t, err)
	f.Core = core
	return f
}

func (f *fakeSearcher) TopDocs(_ context.Context, q query.Query, numWanted uint32, sort *SortSpec) (*TopDocs, error) {
	f.mu.Lock()
	f.requested = append(f.requested, numWanted)
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	c := NewCollector(numWanted, sort)
	if _, none := q.(*query.NoMatchQuery); !none {
		for id := uint32(0); id < f.docCount; id++ {
			c.Collect(MatchDoc{DocID: id, Score: float64(f.docCount - id)})
		}
	}
	return c.TopDocs(), nil
}

func (f *fakeSearcher) FetchDoc(_ context.Context, docID uint32) (model.Document, error) {
	return model.Document{"documentID": fmt.Sprintf("doc-%d", docID)}, nil
}

func testSchema() *schema.Schema {
	return schema.MustNew(config.IndexSettings{
		Name:             "movies",
		SearchableFields: []string{"title"},
	})
}

// countingParserFactory counts how many parsers the Core builds.
func countingParserFactory(count *int) CoreOption {
	return WithParserFactory(func(s *schema.Schema) (QueryParser, error) {
		*count++
		return query.NewParser(s)
	})
}

func TestNewCoreRequiresSchemaAndBackend(t *testing.T) {
	_, err := NewCore(nil, &fakeSearcher{})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = NewCore(testSchema(), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestSchemaIsShared(t *testing.T) {
	s := testSchema()
	a, err := NewCore(s, &fakeSearcher{})
	require.NoError(t, err)
	b, err := NewCore(s, &fakeSearcher{})
	require.NoError(t, err)

	assert.Same(t, s, a.Schema())
	assert.Same(t, a.Schema(), b.Schema())
}

func TestGleanQueryAbsentMatchesNothing(t *testing.T) {
	f := newFake(t, 20)

	q, err := f.GleanQuery(NoQuery())
	require.NoError(t, err)
	assert.IsType(t, &query.NoMatchQuery{}, q)

	for _, n := range []uint32{0, 1, 100} {
		td, err := f.TopDocs(context.Background(), q, n, nil)
		require.NoError(t, err)
		assert.Empty(t, td.MatchDocs)
		assert.Zero(t, td.TotalHits)
	}

	var zero Input
	q, err = f.GleanQuery(zero)
	require.NoError(t, err)
	assert.IsType(t, &query.NoMatchQuery{}, q, "zero Input is absent")
}

func TestGleanQueryExplicitIsIdentity(t *testing.T) {
	f := newFake(t, 1)
	explicit := query.NewTermQuery("title", "matrix")

	q, err := f.GleanQuery(QueryInput(explicit))
	require.NoError(t, err)
	assert.Same(t, explicit, q)

	q, err = f.GleanValue(explicit)
	require.NoError(t, err)
	assert.Same(t, explicit, q)

	assert.Nil(t, f.QueryParser(), "explicit queries never build a parser")
}

func TestGleanQueryTextBuildsParserOnce(t *testing.T) {
	var built int
	f := newFake(t, 1, countingParserFactory(&built))
	assert.Nil(t, f.QueryParser())

	q1, err := f.GleanQuery(TextInput("matrix"))
	require.NoError(t, err)
	first := f.QueryParser()
	require.NotNil(t, first)

	q2, err := f.GleanQuery(TextInput("some text"))
	require.NoError(t, err)

	assert.Equal(t, 1, built)
	assert.Same(t, first, f.QueryParser())
	assert.True(t, query.Equal(query.NewTermQuery("", "matrix"), q1))
	assert.True(t, query.Equal(query.NewORQuery(query.NewTermQuery("", "some"), query.NewTermQuery("", "text")), q2))
}

func TestGleanQueryTextConcurrentBuildsOneParser(t *testing.T) {
	var built int
	f := newFake(t, 1, countingParserFactory(&built))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.GleanQuery(TextInput("matrix"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, built)
}

func TestGleanValueRejectsOtherTypes(t *testing.T) {
	var built int
	f := newFake(t, 1, countingParserFactory(&built))

	for _, v := range []any{42, 3.14, true, map[string]any{"term": "x"}, []string{"a"}} {
		_, err := f.GleanValue(v)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "%T", v)

		var argErr *errors.InvalidArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Contains(t, argErr.Reason, fmt.Sprintf("%T", v))
	}
	assert.Equal(t, 0, built)
	assert.Nil(t, f.QueryParser())
}

func TestGleanValueAcceptedTypes(t *testing.T) {
	f := newFake(t, 1)
	text := "matrix"

	for _, v := range []any{nil, (*string)(nil), (*query.TermQuery)(nil)} {
		q, err := f.GleanValue(v)
		require.NoError(t, err)
		assert.IsType(t, &query.NoMatchQuery{}, q, "%T", v)
	}
	for _, v := range []any{"matrix", &text, []byte("matrix"), TextInput("matrix")} {
		q, err := f.GleanValue(v)
		require.NoError(t, err)
		assert.True(t, query.Equal(query.NewTermQuery("", "matrix"), q), "%T", v)
	}
}

func TestGleanQueryPropagatesParseError(t *testing.T) {
	f := newFake(t, 1)

	_, err := f.GleanQuery(TextInput(`"unterminated`))
	assert.ErrorIs(t, err, errors.ErrParse)

	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParserFactoryFailureIsRetried(t *testing.T) {
	calls := 0
	f := newFake(t, 1, WithParserFactory(func(s *schema.Schema) (QueryParser, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("boom")
		}
		return query.NewParser(s)
	}))

	_, err := f.GleanQuery(TextInput("matrix"))
	require.Error(t, err)
	assert.Nil(t, f.QueryParser(), "a failed build leaves no parser behind")

	_, err = f.GleanQuery(TextInput("matrix"))
	require.NoError(t, err)
	assert.NotNil(t, f.QueryParser())
}

func TestHitsRequestsOffsetPlusNumWanted(t *testing.T) {
	f := newFake(t, 100)

	hits, err := f.Hits(context.Background(), TextInput("matrix"), 5, 10, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint32{15}, f.requested)
	assert.Equal(t, uint32(5), hits.Offset())
	assert.Equal(t, uint32(100), hits.TotalHits())
	require.Equal(t, 10, hits.Len())
	assert.Equal(t, uint32(5), hits.MatchDocs()[0].DocID, "window starts after the first five ranked matches")
	assert.Equal(t, uint32(14), hits.MatchDocs()[9].DocID)
}

func TestHitsZeroWindow(t *testing.T) {
	f := newFake(t, 100)

	hits, err := f.Hits(context.Background(), TextInput("matrix"), 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, f.requested)
	assert.Equal(t, 0, hits.Len())
	assert.Equal(t, uint32(100), hits.TotalHits())

	_, err = hits.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

// An offset past the available matches yields an empty window rather than
// an error. This is a deliberate policy choice.
func TestHitsOffsetPastEndIsEmpty(t *testing.T) {
	f := newFake(t, 3)

	hits, err := f.Hits(context.Background(), NoQuery(), 10, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, hits.Len())

	hits, err = f.Hits(context.Background(), TextInput("matrix"), 10, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, hits.Len())
	assert.Equal(t, uint32(3), hits.TotalHits())

	hits, err = f.Hits(context.Background(), TextInput("matrix"), 2, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hits.Len(), "partial window")
}

func TestHitsOverflowIsInvalidArgument(t *testing.T) {
	f := newFake(t, 3)

	_, err := f.Hits(context.Background(), TextInput("matrix"), MaxCount, 1, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = f.Hits(context.Background(), NoQuery(), 1, math.MaxUint32, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	assert.Empty(t, f.requested, "overflowing requests never reach the backend")

	_, err = f.Hits(context.Background(), NoQuery(), MaxCount, 0, nil)
	assert.NoError(t, err, "exactly MaxCount fits")
	assert.Equal(t, []uint32{MaxCount}, f.requested)
}

func TestHitsPropagatesErrors(t *testing.T) {
	f := newFake(t, 3)

	_, err := f.Hits(context.Background(), TextInput("(unclosed"), 0, 10, nil)
	assert.ErrorIs(t, err, errors.ErrParse)
	assert.Empty(t, f.requested, "no retrieval after a failed glean")

	f.err = errors.ErrSearcherClosed
	_, err = f.Hits(context.Background(), TextInput("matrix"), 0, 10, nil)
	assert.Same(t, errors.ErrSearcherClosed, err, "backend errors are returned unchanged")
}

func TestHitsPassesExplicitQueryAndSortThrough(t *testing.T) {
	f := newFake(t, 10)
	explicit := query.NewMatchAllQuery()
	sort := NewSortSpec(SortRule{Type: SortByDocID, Reverse: true})

	hits, err := f.Hits(context.Background(), QueryInput(explicit), 0, 3, sort)
	require.NoError(t, err)

	assert.Same(t, explicit, f.queries[0])
	ids := []uint32{}
	for _, m := range hits.MatchDocs() {
		ids = append(ids, m.DocID)
	}
	assert.Equal(t, []uint32{9, 8, 7}, ids)
}

func TestHitsNextFetchesDocuments(t *testing.T) {
	f := newFake(t, 5)

	hits, err := f.Hits(context.Background(), TextInput("matrix"), 1, 2, nil)
	require.NoError(t, err)

	all, err := hits.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "doc-1", all[0].Doc["documentID"])
	assert.Equal(t, "doc-2", all[1].Doc["documentID"])

	_, err = hits.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestHitsNextHonorsCancellation(t *testing.T) {
	f := newFake(t, 5)
	hits, err := f.Hits(context.Background(), TextInput("matrix"), 0, 5, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = hits.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoreCloseIsNoOp(t *testing.T) {
	f := newFake(t, 5)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err := f.Hits(context.Background(), TextInput("matrix"), 0, 1, nil)
	assert.NoError(t, err, "the core imposes no closed state")
}

func TestCoreOf(t *testing.T) {
	f := newFake(t, 1)
	var s Searcher = f
	assert.Same(t, f.Core, CoreOf(s))
}
