package search

import (
	"math"

	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/store"
)

// BM25 parameters
const (
	bm25K1 = 1.2  // Controls term frequency saturation
	bm25B  = 0.75 // Controls how much effect document length has
)

// BM25Calculator scores term occurrences against the index statistics.
// The caller must hold the read locks of both the index and the store.
type BM25Calculator struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
}

// NewBM25Calculator creates a new BM25 calculator
func NewBM25Calculator(invIndex *index.InvertedIndex, docStore *store.DocumentStore) *BM25Calculator {
	return &BM25Calculator{
		invertedIndex: invIndex,
		documentStore: docStore,
	}
}

// IDF returns the inverse document frequency for a term found in docFreq
// documents: log(1 + (N - df + 0.5) / (df + 0.5)), which stays positive for
// terms present in every document.
func (calc *BM25Calculator) IDF(docFreq int) float64 {
	n := float64(calc.documentStore.Len())
	if n == 0 || docFreq == 0 {
		return 0
	}
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// TermIDF is IDF for a whole-word term across all fields.
func (calc *BM25Calculator) TermIDF(term string) float64 {
	return calc.IDF(calc.invertedIndex.DocFreq(term, ""))
}

// Score computes the BM25 contribution of a term occurring termFreq times in
// one field of a document, with length normalization against that field's
// average length.
//
//	BM25 = IDF * (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * (|d| / avgdl)))
func (calc *BM25Calculator) Score(idf float64, field string, docID uint32, termFreq float64) float64 {
	if termFreq <= 0 || idf == 0 {
		return 0
	}
	norm := 1.0
	if avg := calc.invertedIndex.AverageFieldLength(field); avg > 0 {
		docLength := float64(calc.invertedIndex.FieldLength(field, docID))
		norm = 1 - bm25B + bm25B*(docLength/avg)
	}
	return idf * (termFreq * (bm25K1 + 1)) / (termFreq + bm25K1*norm)
}
