package search

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
)

// PolySearcher runs a query against several searchers as if they were one
// index. Document numbers of the i-th searcher are shifted by the DocMax of
// the searchers before it.
type PolySearcher struct {
	*searcher.Core
	subs []searcher.Searcher
}

var (
	_ searcher.Searcher   = (*PolySearcher)(nil)
	_ searcher.DocFetcher = (*PolySearcher)(nil)
	_ searcher.DocCounter = (*PolySearcher)(nil)
)

// NewPolySearcher combines subs, which must implement searcher.DocCounter
// and have schemas compatible with sch. The subs are not owned: closing the
// PolySearcher leaves them open.
func NewPolySearcher(sch *schema.Schema, subs []searcher.Searcher, opts ...searcher.CoreOption) (*PolySearcher, error) {
	for i, sub := range subs {
		if sub == nil {
			return nil, errors.NewInvalidArgumentError("searchers", fmt.Sprintf("searcher %d is nil", i))
		}
		if _, ok := sub.(searcher.DocCounter); !ok {
			return nil, errors.NewInvalidArgumentError("searchers", fmt.Sprintf("searcher %d cannot report its document count", i))
		}
		if !sub.Schema().Compatible(sch) {
			return nil, errors.NewInvalidArgumentError("searchers",
				fmt.Sprintf("schema of searcher %d (%s) is incompatible with %s", i, sub.Schema().Name(), sch.Name()))
		}
	}

	p := &PolySearcher{subs: append([]searcher.Searcher(nil), subs...)}
	core, err := searcher.NewCore(sch, p, opts...)
	if err != nil {
		return nil, err
	}
	p.Core = core
	return p, nil
}

// Searchers returns the combined searchers.
func (p *PolySearcher) Searchers() []searcher.Searcher {
	return append([]searcher.Searcher(nil), p.subs...)
}

// PolyView resolves combined document numbers against the sub offsets that
// were current when one TopDocs call ran. Subs that grow afterwards do not
// shift the numbers it hands out.
type PolyView struct {
	subs   []searcher.Searcher
	starts []uint32
	ends   []uint32
}

var _ searcher.DocFetcher = (*PolyView)(nil)

// view snapshots the document number range of each sub.
func (p *PolySearcher) view() (*PolyView, error) {
	v := &PolyView{
		subs:   p.subs,
		starts: make([]uint32, len(p.subs)),
		ends:   make([]uint32, len(p.subs)),
	}
	var next uint64
	for i, sub := range p.subs {
		v.starts[i] = uint32(next)
		next += uint64(sub.(searcher.DocCounter).DocMax())
		if next > math.MaxUint32 {
			return nil, errors.NewInvalidArgumentError("searchers", "combined document count exceeds the document number space")
		}
		v.ends[i] = uint32(next)
	}
	return v, nil
}

// Locate maps a combined document number to the index of the sub owning it
// and the sub's own document number.
func (v *PolyView) Locate(docID uint32) (sub int, local uint32, ok bool) {
	for i := len(v.starts) - 1; i >= 0; i-- {
		if docID >= v.starts[i] {
			if docID < v.ends[i] {
				return i, docID - v.starts[i], true
			}
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// FetchDoc loads a document from the sub owning docID.
func (v *PolyView) FetchDoc(ctx context.Context, docID uint32) (model.Document, error) {
	i, local, ok := v.Locate(docID)
	if !ok {
		return nil, errors.NewDocumentNotFoundError(formatDocNum(docID))
	}
	fetcher, isFetcher := v.subs[i].(searcher.DocFetcher)
	if !isFetcher {
		return nil, errors.NewInvalidArgumentError("searchers", fmt.Sprintf("searcher %d cannot fetch documents", i))
	}
	return fetcher.FetchDoc(ctx, local)
}

// TopDocs queries every sub concurrently and merges their best matches.
func (p *PolySearcher) TopDocs(ctx context.Context, q query.Query, numWanted uint32, sort *searcher.SortSpec) (*searcher.TopDocs, error) {
	if err := sort.Validate(); err != nil {
		return nil, err
	}
	view, err := p.view()
	if err != nil {
		return nil, err
	}

	results := make([]*searcher.TopDocs, len(p.subs))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range p.subs {
		g.Go(func() error {
			td, err := sub.TopDocs(gctx, q, numWanted, sort)
			if err != nil {
				return fmt.Errorf("searcher %d: %w", i, err)
			}
			results[i] = td
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	collector := searcher.NewCollector(numWanted, sort)
	var total uint64
	for i, td := range results {
		if td == nil {
			continue
		}
		total += uint64(td.TotalHits)
		for _, m := range td.MatchDocs {
			m.DocID += view.starts[i]
			collector.Collect(m)
		}
	}

	merged := collector.TopDocs()
	merged.TotalHits = uint32(min(total, math.MaxUint32))
	merged.Fetcher = view
	return merged, nil
}

// FetchDoc loads a document from the sub owning docID under the current
// offsets. Hits from TopDocs resolve through the view pinned by that call.
func (p *PolySearcher) FetchDoc(ctx context.Context, docID uint32) (model.Document, error) {
	v, err := p.view()
	if err != nil {
		return nil, err
	}
	return v.FetchDoc(ctx, docID)
}

// Locate maps a combined document number under the current offsets.
func (p *PolySearcher) Locate(docID uint32) (sub int, local uint32, ok bool) {
	v, err := p.view()
	if err != nil {
		return 0, 0, false
	}
	return v.Locate(docID)
}

// DocMax is the sum of the subs' DocMax.
func (p *PolySearcher) DocMax() uint32 {
	var total uint64
	for _, sub := range p.subs {
		total += uint64(sub.(searcher.DocCounter).DocMax())
	}
	return uint32(min(total, math.MaxUint32))
}
