package searcher

import (
	"context"
	"io"

	"github.com/gcbaptista/go-searcher/model"
)

// HitDoc is a match in the visible window, with its stored document when
// the searcher can fetch documents.
type HitDoc struct {
	MatchDoc
	Doc model.Document
}

// Hits is the visible window of a search: the matches of a TopDocs starting
// at offset. Computing offset+numWanted matches and then exposing only the
// tail keeps the ranking of the window correct.
type Hits struct {
	fetcher DocFetcher
	matches []MatchDoc
	offset  uint32
	total   uint32
	next    int
}

// NewHits builds the window over topDocs starting at offset. It takes
// ownership of topDocs.MatchDocs. Documents are fetched through
// topDocs.Fetcher if set, otherwise through source when it is a DocFetcher.
// An offset at or past the end of the matches yields an empty window, not an
// error.
func NewHits(source Backend, topDocs *TopDocs, offset uint32) *Hits {
	h := &Hits{offset: offset}
	h.fetcher, _ = source.(DocFetcher)
	if topDocs == nil {
		return h
	}
	if topDocs.Fetcher != nil {
		h.fetcher = topDocs.Fetcher
	}
	h.total = topDocs.TotalHits
	if uint64(offset) < uint64(len(topDocs.MatchDocs)) {
		h.matches = topDocs.MatchDocs[offset:]
	}
	return h
}

// Offset returns the window start.
func (h *Hits) Offset() uint32 { return h.offset }

// TotalHits returns how many documents matched, regardless of the window.
func (h *Hits) TotalHits() uint32 { return h.total }

// Len returns the number of matches in the window.
func (h *Hits) Len() int { return len(h.matches) }

// Fetcher returns what resolves the window's DocIDs, or nil when documents
// are not fetched.
func (h *Hits) Fetcher() DocFetcher { return h.fetcher }

// MatchDocs returns the window's matches, best first.
func (h *Hits) MatchDocs() []MatchDoc { return h.matches }

// Next returns the next hit in the window, or io.EOF after the last one.
// When a fetcher is available the stored document is attached.
func (h *Hits) Next(ctx context.Context) (*HitDoc, error) {
	if h.next >= len(h.matches) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := h.matches[h.next]
	h.next++

	hit := &HitDoc{MatchDoc: m}
	if h.fetcher != nil {
		doc, err := h.fetcher.FetchDoc(ctx, m.DocID)
		if err != nil {
			return nil, err
		}
		hit.Doc = doc
	}
	return hit, nil
}

// Collect drains the remaining window.
func (h *Hits) Collect(ctx context.Context) ([]HitDoc, error) {
	out := make([]HitDoc, 0, len(h.matches)-h.next)
	for {
		hit, err := h.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *hit)
	}
}
