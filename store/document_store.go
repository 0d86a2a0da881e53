// Package store keeps the source documents of an index keyed by a dense
// internal ID.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/gcbaptista/go-searcher/model"
)

func init() {
	// Types that appear as interface{} values in decoded JSON documents.
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
	gob.Register([]string{})
	gob.Register(float64(0))
	gob.Register(false)
}

// Entry is a stored document together with its internal ID.
type Entry struct {
	ID  uint32
	Doc model.Document
}

// DocumentStore maps internal IDs to documents. Internal IDs are assigned
// in insertion order and never reused, so NextID bounds every ID handed out.
type DocumentStore struct {
	Mu                     sync.RWMutex
	Docs                   map[uint32]model.Document // Internal ID to full document
	ExternalIDtoInternalID map[string]uint32         // User-provided ID to internal uint32 ID
	NextID                 uint32

	live *roaring.Bitmap
}

// New creates an empty store.
func New() *DocumentStore {
	return &DocumentStore{
		Docs:                   make(map[uint32]model.Document),
		ExternalIDtoInternalID: make(map[string]uint32),
		live:                   roaring.New(),
	}
}

// Put stores doc under its external ID, keeping the internal ID of an
// existing document. It returns the internal ID and the replaced document,
// if any. The caller must hold Mu for writing.
func (ds *DocumentStore) Put(externalID string, doc model.Document) (uint32, model.Document) {
	ds.ensure()
	internalID, exists := ds.ExternalIDtoInternalID[externalID]
	var old model.Document
	if exists {
		old = ds.Docs[internalID]
	} else {
		internalID = ds.NextID
		ds.ExternalIDtoInternalID[externalID] = internalID
		ds.NextID++
	}
	ds.Docs[internalID] = doc
	ds.live.Add(internalID)
	return internalID, old
}

// Delete removes a document by external ID, returning its internal ID and
// content. The caller must hold Mu for writing.
func (ds *DocumentStore) Delete(externalID string) (uint32, model.Document, bool) {
	ds.ensure()
	internalID, exists := ds.ExternalIDtoInternalID[externalID]
	if !exists {
		return 0, nil, false
	}
	doc := ds.Docs[internalID]
	delete(ds.Docs, internalID)
	delete(ds.ExternalIDtoInternalID, externalID)
	ds.live.Remove(internalID)
	return internalID, doc, true
}

// Reset drops every document. NextID is kept, so an internal ID held by an
// in-flight search misses instead of naming a document added later.
// The caller must hold Mu for writing.
func (ds *DocumentStore) Reset() {
	ds.Docs = make(map[uint32]model.Document)
	ds.ExternalIDtoInternalID = make(map[string]uint32)
	ds.live = roaring.New()
}

// Get returns the document with the given internal ID. The caller must hold Mu.
func (ds *DocumentStore) Get(internalID uint32) (model.Document, bool) {
	doc, ok := ds.Docs[internalID]
	return doc, ok
}

// Lookup returns the internal ID of an external ID. The caller must hold Mu.
func (ds *DocumentStore) Lookup(externalID string) (uint32, bool) {
	id, ok := ds.ExternalIDtoInternalID[externalID]
	return id, ok
}

// Entries returns every stored document in internal ID order.
// The caller must hold Mu.
func (ds *DocumentStore) Entries() []Entry {
	ds.ensure()
	entries := make([]Entry, 0, len(ds.Docs))
	it := ds.live.Iterator()
	for it.HasNext() {
		id := it.Next()
		entries = append(entries, Entry{ID: id, Doc: ds.Docs[id]})
	}
	return entries
}

// Len returns the number of stored documents. The caller must hold Mu.
func (ds *DocumentStore) Len() int { return len(ds.Docs) }

// Live returns a copy of the set of stored internal IDs. The caller must hold Mu.
func (ds *DocumentStore) Live() *roaring.Bitmap {
	ds.ensure()
	return ds.live.Clone()
}

// ensure initializes maps left nil by a zero-value store and rebuilds the
// live set, which is not persisted.
func (ds *DocumentStore) ensure() {
	if ds.Docs == nil {
		ds.Docs = make(map[uint32]model.Document)
	}
	if ds.ExternalIDtoInternalID == nil {
		ds.ExternalIDtoInternalID = make(map[string]uint32)
	}
	if ds.live == nil {
		ds.live = roaring.New()
		for id := range ds.Docs {
			ds.live.Add(id)
		}
	}
}

// gobDocumentStoreData is a helper struct for Gob encoding/decoding DocumentStore data.
// It excludes the mutex and the live set.
type gobDocumentStoreData struct {
	Docs                   map[uint32]model.Document
	ExternalIDtoInternalID map[string]uint32
	NextID                 uint32
}

// GobEncode implements the gob.GobEncoder interface for DocumentStore.
func (ds *DocumentStore) GobEncode() ([]byte, error) {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()

	// Decoded JSON arrays of strings are stored as []string
	storableDocs := make(map[uint32]model.Document, len(ds.Docs))
	for id, doc := range ds.Docs {
		storableDoc := make(model.Document, len(doc))
		for k, val := range doc {
			storableDoc[k] = storableValue(val)
		}
		storableDocs[id] = storableDoc
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobDocumentStoreData{
		Docs:                   storableDocs,
		ExternalIDtoInternalID: ds.ExternalIDtoInternalID,
		NextID:                 ds.NextID,
	}); err != nil {
		return nil, fmt.Errorf("failed to gob encode document store data: %w", err)
	}
	return buf.Bytes(), nil
}

func storableValue(val interface{}) interface{} {
	items, ok := val.([]interface{})
	if !ok {
		return val
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			return val
		}
		strs = append(strs, s)
	}
	return strs
}

// GobDecode implements the gob.GobDecoder interface for DocumentStore.
func (ds *DocumentStore) GobDecode(data []byte) error {
	var decoded gobDocumentStoreData
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to gob decode document store data: %w", err)
	}

	ds.Mu.Lock()
	defer ds.Mu.Unlock()

	ds.Docs = decoded.Docs
	ds.ExternalIDtoInternalID = decoded.ExternalIDtoInternalID
	ds.NextID = decoded.NextID
	ds.live = nil
	ds.ensure()
	return nil
}
