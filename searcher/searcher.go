// Package searcher defines the query execution contract shared by every
// search backend.
//
// A concrete searcher embeds the *Core returned by NewCore and supplies the
// retrieval primitive through the Backend interface. Core turns any caller
// input into a query, asks the backend for offset+numWanted ranked matches,
// and exposes the numWanted matches after offset as a Hits window:
//
//	s := &MySearcher{...}
//	core, err := searcher.NewCore(schema, s)
//	s.Core = core
//	hits, err := s.Hits(ctx, searcher.TextInput("title:matrix"), 10, 10, nil)
package searcher

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
)

// MaxCount is the largest number of matches a single request may compute.
const MaxCount = math.MaxUint32

// Backend is the retrieval primitive a concrete searcher implements.
type Backend interface {
	// TopDocs returns up to numWanted matches for q, ordered by sort or by
	// relevance when sort is nil. numWanted may be zero.
	TopDocs(ctx context.Context, q query.Query, numWanted uint32, sort *SortSpec) (*TopDocs, error)
}

// DocFetcher is implemented by backends that can load a matched document.
type DocFetcher interface {
	FetchDoc(ctx context.Context, docID uint32) (model.Document, error)
}

// DocCounter is implemented by backends that know their document number
// space: every DocID they return is below DocMax.
type DocCounter interface {
	DocMax() uint32
}

// Searcher is the contract every concrete searcher satisfies. It can only
// be implemented by embedding the *Core obtained from NewCore.
type Searcher interface {
	Backend
	Hits(ctx context.Context, in Input, offset, numWanted uint32, sort *SortSpec) (*Hits, error)
	GleanQuery(in Input) (query.Query, error)
	Schema() *schema.Schema
	Close() error
	core() *Core
}

// QueryParser turns free text into a query.
type QueryParser interface {
	Parse(text string) (query.Query, error)
}

// ParserFactory builds the parser a Core uses for text input.
type ParserFactory func(s *schema.Schema) (QueryParser, error)

// CoreOption configures a Core.
type CoreOption func(*Core)

// WithParserFactory replaces how the text query parser is constructed.
func WithParserFactory(f ParserFactory) CoreOption {
	return func(c *Core) { c.newParser = f }
}

// WithParserOptions passes options to the default query.Parser.
func WithParserOptions(opts ...query.ParserOption) CoreOption {
	return func(c *Core) {
		c.newParser = func(s *schema.Schema) (QueryParser, error) {
			return query.NewParser(s, opts...)
		}
	}
}

// Core implements the backend-independent half of a Searcher.
type Core struct {
	schema  *schema.Schema
	backend Backend

	mu        sync.Mutex
	newParser ParserFactory
	qparser   QueryParser
}

// NewCore creates the shared searcher state. Both the schema and the
// backend are required.
func NewCore(s *schema.Schema, backend Backend, opts ...CoreOption) (*Core, error) {
	if s == nil {
		return nil, errors.NewInvalidArgumentError("schema", "schema is nil")
	}
	if backend == nil {
		return nil, errors.NewInvalidArgumentError("backend", "a searcher needs a backend implementing TopDocs")
	}
	c := &Core{
		schema:  s,
		backend: backend,
		newParser: func(s *schema.Schema) (QueryParser, error) {
			return query.NewParser(s)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Core) core() *Core { return c }

// Schema returns the schema the searcher was built with.
func (c *Core) Schema() *schema.Schema { return c.schema }

// Close releases nothing at this level. Searchers that hold resources
// override it.
func (c *Core) Close() error { return nil }

// QueryParser returns the text parser, or nil if no text input has been
// gleaned yet.
func (c *Core) QueryParser() QueryParser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qparser
}

func (c *Core) parser() (QueryParser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qparser == nil {
		p, err := c.newParser(c.schema)
		if err != nil {
			return nil, fmt.Errorf("failed to create query parser: %w", err)
		}
		c.qparser = p
	}
	return c.qparser, nil
}

// GleanQuery turns an input into a query. An absent input becomes a
// NoMatchQuery, an explicit query is returned unchanged and text is parsed
// with the searcher's parser, which is built on first use and reused.
func (c *Core) GleanQuery(in Input) (query.Query, error) {
	switch in.kind {
	case inputAbsent:
		return query.NewNoMatchQuery(), nil
	case inputQuery:
		return in.q, nil
	case inputText:
		p, err := c.parser()
		if err != nil {
			return nil, err
		}
		return p.Parse(in.text)
	}
	return nil, errors.NewInvalidArgumentError("query", fmt.Sprintf("unknown input kind %d", in.kind))
}

// GleanValue is GleanQuery for untyped input. Values that are neither nil,
// a query.Query nor text fail with ErrInvalidArgument before any parser
// is built.
func (c *Core) GleanValue(v any) (query.Query, error) {
	in, err := InputOf(v)
	if err != nil {
		return nil, err
	}
	return c.GleanQuery(in)
}

// Hits runs a search and returns the numWanted matches that follow the
// first offset matches. The backend is asked for offset+numWanted matches;
// a sum that does not fit in a uint32 fails with ErrInvalidArgument.
func (c *Core) Hits(ctx context.Context, in Input, offset, numWanted uint32, sort *SortSpec) (*Hits, error) {
	q, err := c.GleanQuery(in)
	if err != nil {
		return nil, err
	}

	total := uint64(offset) + uint64(numWanted)
	if total > MaxCount {
		return nil, errors.NewInvalidArgumentError("offset",
			fmt.Sprintf("offset %d + num_wanted %d exceeds %d", offset, numWanted, uint32(MaxCount)))
	}

	topDocs, err := c.backend.TopDocs(ctx, q, uint32(total), sort)
	if err != nil {
		return nil, err
	}
	if topDocs == nil {
		topDocs = &TopDocs{}
	}
	if uint64(len(topDocs.MatchDocs)) > total {
		topDocs.MatchDocs = topDocs.MatchDocs[:total]
	}
	return NewHits(c.backend, topDocs, offset), nil
}

// CoreOf returns the Core a Searcher was built on.
func CoreOf(s Searcher) *Core { return s.core() }
