package index

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-searcher/config"
)

func TestUpsertKeepsPostingsSorted(t *testing.T) {
	ii := New(&config.IndexSettings{Name: "movies"})

	ii.Upsert("matrix", PostingEntry{DocID: 3, FieldName: "title", TermFreq: 1})
	ii.Upsert("matrix", PostingEntry{DocID: 1, FieldName: "title", TermFreq: 1})
	ii.Upsert("matrix", PostingEntry{DocID: 1, FieldName: "plot", TermFreq: 2})
	ii.Upsert("matrix", PostingEntry{DocID: 3, FieldName: "title", TermFreq: 4})

	pl := ii.Postings("matrix")
	require.Len(t, pl, 3)
	assert.Equal(t, PostingEntry{DocID: 1, FieldName: "plot", TermFreq: 2}, pl[0])
	assert.Equal(t, PostingEntry{DocID: 1, FieldName: "title", TermFreq: 1}, pl[1])
	assert.Equal(t, 4, pl[2].TermFreq, "existing (doc, field) entry is replaced")
}

func TestRemoveDropsEmptyTerms(t *testing.T) {
	ii := New(&config.IndexSettings{})
	ii.Upsert("neo", PostingEntry{DocID: 0, FieldName: "title", TermFreq: 1})
	ii.Upsert("neo", PostingEntry{DocID: 1, FieldName: "title", TermFreq: 1})

	ii.Remove("neo", 0, "title")
	ii.Remove("neo", 7, "title")
	ii.Remove("trinity", 0, "title")
	assert.Len(t, ii.Postings("neo"), 1)

	ii.Remove("neo", 1, "title")
	_, exists := ii.Index["neo"]
	assert.False(t, exists)
}

func TestDocFreqAndTerms(t *testing.T) {
	ii := New(&config.IndexSettings{})
	ii.Upsert("mat", PostingEntry{DocID: 0, FieldName: "title", PrefixFreq: 1})
	ii.Upsert("matrix", PostingEntry{DocID: 0, FieldName: "title", TermFreq: 1})
	ii.Upsert("matrix", PostingEntry{DocID: 0, FieldName: "plot", TermFreq: 1})
	ii.Upsert("matrix", PostingEntry{DocID: 2, FieldName: "plot", TermFreq: 1})

	assert.Equal(t, 2, ii.DocFreq("matrix", ""), "a document counts once across fields")
	assert.Equal(t, 1, ii.DocFreq("matrix", "title"))
	assert.Equal(t, 0, ii.DocFreq("mat", ""), "prefix n-grams are not words")
	assert.Equal(t, []string{"matrix"}, ii.Terms())
}

func TestFieldLengths(t *testing.T) {
	ii := &InvertedIndex{}
	ii.SetFieldLength("title", 0, 2)
	ii.SetFieldLength("title", 1, 4)
	assert.Equal(t, 4, ii.FieldLength("title", 1))
	assert.InDelta(t, 3.0, ii.AverageFieldLength("title"), 1e-9)

	ii.SetFieldLength("title", 1, 0)
	assert.Equal(t, 0, ii.FieldLength("title", 1))
	assert.InDelta(t, 2.0, ii.AverageFieldLength("title"), 1e-9)
	assert.Zero(t, ii.AverageFieldLength("plot"))
}

func TestInvertedIndexGobRoundTrip(t *testing.T) {
	settings := &config.IndexSettings{Name: "movies", SearchableFields: []string{"title"}}
	ii := New(settings)
	ii.Upsert("matrix", PostingEntry{DocID: 0, FieldName: "title", TermFreq: 1, Positions: []int{1}})
	ii.SetFieldLength("title", 0, 2)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(ii))

	decoded := &InvertedIndex{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))
	assert.Equal(t, ii.Index, decoded.Index)
	assert.Equal(t, "movies", decoded.Settings.Name)
	assert.Equal(t, 2, decoded.FieldLength("title", 0))

	decoded.Reset()
	assert.Empty(t, decoded.Terms())
}
