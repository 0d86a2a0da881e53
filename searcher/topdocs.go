package searcher

// MatchDoc is one ranked result. DocID is the searcher-local document
// number; Values holds the document's values for the field rules of the
// SortSpec that produced it, in rule order.
type MatchDoc struct {
	DocID  uint32
	Score  float64
	Values []any
}

// TopDocs is the ranked output of a single TopDocs call: at most the
// requested number of matches, best first, plus the number of documents
// that matched in total.
type TopDocs struct {
	MatchDocs []MatchDoc
	TotalHits uint32

	// Fetcher, when set, resolves the DocIDs of this result instead of the
	// searcher that produced it. Searchers whose numbering can shift after
	// TopDocs returns set it to a view pinned at query time.
	Fetcher DocFetcher
}
