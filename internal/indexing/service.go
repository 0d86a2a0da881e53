// Package indexing maintains an index's inverted index and document store,
// and forwards every change to the backends mirroring the index.
package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/store"
)

// microBatchSize bounds how many documents are indexed per lock acquisition,
// so searches can interleave with large ingestions.
const microBatchSize = 10

// valueGap separates the token positions of consecutive array elements so
// a phrase never matches across two values.
const valueGap = 100

// Mirror receives every change applied through the Service, in order and
// with the internal IDs assigned by the document store.
type Mirror interface {
	IndexDocuments(ctx context.Context, entries []store.Entry) error
	DeleteDocuments(ctx context.Context, ids []uint32) error
	DeleteAllDocuments(ctx context.Context) error
}

// Service implements the indexing logic for a single index.
type Service struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	schema        *schema.Schema
	mirrors       []Mirror
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMirror forwards changes to m after they are applied locally.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		if m != nil {
			s.mirrors = append(s.mirrors, m)
		}
	}
}

// WithLogger sets the logger for indexing warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an indexing Service over invertedIndex and documentStore
// analyzing fields as described by sch.
func NewService(invertedIndex *index.InvertedIndex, documentStore *store.DocumentStore, sch *schema.Schema, opts ...Option) (*Service, error) {
	if invertedIndex == nil {
		return nil, fmt.Errorf("inverted index cannot be nil")
	}
	if documentStore == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if sch == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if invertedIndex.Index == nil {
		invertedIndex.Index = make(map[string]index.PostingList)
	}
	if invertedIndex.FieldLengths == nil {
		invertedIndex.FieldLengths = make(map[string]map[uint32]int)
	}
	if documentStore.Docs == nil {
		documentStore.Docs = make(map[uint32]model.Document)
	}
	if documentStore.ExternalIDtoInternalID == nil {
		documentStore.ExternalIDtoInternalID = make(map[string]uint32)
	}

	s := &Service{
		invertedIndex: invertedIndex,
		documentStore: documentStore,
		schema:        sch,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	return s, nil
}

// Schema returns the schema documents are analyzed with.
func (s *Service) Schema() *schema.Schema { return s.schema }

// AddDocuments adds or replaces documents, keyed by their documentID.
func (s *Service) AddDocuments(ctx context.Context, docs []model.Document) error {
	for i := 0; i < len(docs); i += microBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+microBatchSize, len(docs))
		if err := s.addDocumentMicroBatch(ctx, docs[i:end]); err != nil {
			return fmt.Errorf("failed to add document micro-batch starting at index %d: %w", i, err)
		}

		// Let pending readers acquire the locks between micro-batches
		if end < len(docs) {
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

func (s *Service) addDocumentMicroBatch(ctx context.Context, docs []model.Document) error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		docID, err := documentID(doc)
		if err != nil {
			return err
		}
		ids[i] = docID
	}

	entries := make([]store.Entry, 0, len(docs))
	for i, doc := range docs {
		docID := ids[i]
		internalID, old := s.documentStore.Put(docID, doc)
		if old != nil {
			s.unindexUnsafe(internalID, old)
		}
		s.indexUnsafe(internalID, docID, doc)
		entries = append(entries, store.Entry{ID: internalID, Doc: doc})
	}

	for _, m := range s.mirrors {
		if err := m.IndexDocuments(ctx, entries); err != nil {
			return fmt.Errorf("failed to mirror documents: %w", err)
		}
	}
	return nil
}

func documentID(doc model.Document) (string, error) {
	raw, ok := doc[model.DocumentIDField]
	if !ok {
		return "", errors.NewValidationError(model.DocumentIDField, "documentID must be provided in the document data with key 'documentID'")
	}
	id, ok := raw.(string)
	if !ok {
		return "", errors.NewValidationError(model.DocumentIDField, fmt.Sprintf("documentID must be a string, got %T", raw))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewValidationError(model.DocumentIDField, "documentID cannot be empty or whitespace-only")
	}
	return id, nil
}

// indexUnsafe adds postings for every searchable field of doc.
// The caller holds both write locks.
func (s *Service) indexUnsafe(internalID uint32, docID string, doc model.Document) {
	for _, fieldName := range s.schema.SearchableFields() {
		value, exists := doc[fieldName]
		if !exists {
			continue
		}
		field, _ := s.schema.Field(fieldName)
		terms, length := analyzeField(field, value)
		if len(terms) == 0 {
			if value != nil {
				s.logger.Debug("searchable_field_not_indexed",
					slog.String("document_id", docID),
					slog.String("field", fieldName),
					slog.String("type", fmt.Sprintf("%T", value)))
			}
			continue
		}
		for term, occ := range terms {
			s.invertedIndex.Upsert(term, index.PostingEntry{
				DocID:      internalID,
				FieldName:  fieldName,
				TermFreq:   occ.freq,
				PrefixFreq: occ.prefixFreq,
				Positions:  occ.positions,
			})
		}
		s.invertedIndex.SetFieldLength(fieldName, internalID, length)
	}
}

// unindexUnsafe removes the postings doc produced. The caller holds both
// write locks.
func (s *Service) unindexUnsafe(internalID uint32, doc model.Document) {
	for _, fieldName := range s.schema.SearchableFields() {
		value, exists := doc[fieldName]
		if !exists {
			continue
		}
		field, _ := s.schema.Field(fieldName)
		terms, _ := analyzeField(field, value)
		for term := range terms {
			s.invertedIndex.Remove(term, internalID, fieldName)
		}
		s.invertedIndex.SetFieldLength(fieldName, internalID, 0)
	}
}

// DeleteDocument removes a document by its external ID.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	internalID, doc, ok := s.documentStore.Delete(docID)
	if !ok {
		return errors.NewDocumentNotFoundError(docID)
	}
	if doc != nil {
		s.unindexUnsafe(internalID, doc)
	}

	for _, m := range s.mirrors {
		if err := m.DeleteDocuments(ctx, []uint32{internalID}); err != nil {
			return fmt.Errorf("failed to mirror deletion of %s: %w", docID, err)
		}
	}
	return nil
}

// DeleteAllDocuments clears the document store and the inverted index.
func (s *Service) DeleteAllDocuments(ctx context.Context) error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	s.documentStore.Reset()
	s.invertedIndex.Reset()

	for _, m := range s.mirrors {
		if err := m.DeleteAllDocuments(ctx); err != nil {
			return fmt.Errorf("failed to mirror delete-all: %w", err)
		}
	}
	return nil
}

// Resync replays every stored document into the mirrors, which is how a
// backend is rebuilt after loading an index from disk.
func (s *Service) Resync(ctx context.Context) error {
	s.documentStore.Mu.RLock()
	entries := s.documentStore.Entries()
	s.documentStore.Mu.RUnlock()

	for _, m := range s.mirrors {
		if err := m.DeleteAllDocuments(ctx); err != nil {
			return fmt.Errorf("failed to reset mirror: %w", err)
		}
		for i := 0; i < len(entries); i += microBatchSize * 10 {
			end := min(i+microBatchSize*10, len(entries))
			if err := m.IndexDocuments(ctx, entries[i:end]); err != nil {
				return fmt.Errorf("failed to resync mirror: %w", err)
			}
		}
	}
	return nil
}

type occurrence struct {
	freq       int
	prefixFreq int
	positions  []int
}

// analyzeField produces the terms of one field value and the field's length
// in whole-word tokens. Keyword fields index each value as one term; other
// types are tokenized, with prefix n-grams when the field allows prefix search.
func analyzeField(field schema.Field, value interface{}) (map[string]*occurrence, int) {
	values := model.TextValues(value)
	if len(values) == 0 {
		return nil, 0
	}

	terms := make(map[string]*occurrence)
	get := func(term string) *occurrence {
		occ, ok := terms[term]
		if !ok {
			occ = &occurrence{}
			terms[term] = occ
		}
		return occ
	}

	length := 0
	base := 0
	for _, text := range values {
		if field.Type == config.FieldTypeKeyword {
			if kw := tokenizer.NormalizeKeyword(text); kw != "" {
				occ := get(kw)
				occ.freq++
				occ.positions = append(occ.positions, base)
				length++
			}
			base += valueGap
			continue
		}

		last := 0
		for _, tok := range tokenizer.TokenizeWithOffsets(text) {
			occ := get(tok.Term)
			occ.freq++
			occ.positions = append(occ.positions, base+tok.Position)
			last = tok.Position
			length++

			if field.PrefixSearch {
				ngrams := tokenizer.GeneratePrefixNGrams(tok.Term)
				// The last n-gram is the word itself
				for _, ngram := range ngrams[:len(ngrams)-1] {
					get(ngram).prefixFreq++
				}
			}
		}
		base += last + valueGap
	}
	return terms, length
}
