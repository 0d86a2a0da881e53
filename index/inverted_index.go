// Package index holds the in-memory inverted index: postings per term, plus
// the per-field token counts BM25 needs.
//
// InvertedIndex carries no locking of its own beyond the exported Mu; the
// indexing service takes the write lock and searchers take the read lock.
package index

import (
	"bytes"
	"encoding/gob"
	"sort"
	"sync"

	"github.com/gcbaptista/go-searcher/config"
)

// InvertedIndex maps a term to the documents and fields containing it.
type InvertedIndex struct {
	Mu       sync.RWMutex
	Index    map[string]PostingList
	Settings *config.IndexSettings // Reference to settings for this index

	// FieldLengths[field][docID] is the number of whole-word tokens indexed for that field.
	FieldLengths map[string]map[uint32]int
}

// New creates an empty index for settings.
func New(settings *config.IndexSettings) *InvertedIndex {
	return &InvertedIndex{
		Index:        make(map[string]PostingList),
		Settings:     settings,
		FieldLengths: make(map[string]map[uint32]int),
	}
}

// Postings returns the posting list of term. The caller must hold Mu.
func (ii *InvertedIndex) Postings(term string) PostingList {
	return ii.Index[term]
}

// Upsert records that term occurs in the entry's document and field,
// replacing any previous entry for that pair. The caller must hold Mu for writing.
func (ii *InvertedIndex) Upsert(term string, entry PostingEntry) {
	pl := ii.Index[term]
	i, found := pl.search(entry.DocID, entry.FieldName)
	if found {
		pl[i] = entry
		return
	}
	pl = append(pl, PostingEntry{})
	copy(pl[i+1:], pl[i:])
	pl[i] = entry
	ii.Index[term] = pl
}

// Remove drops the entry for (docID, field) from term's postings, deleting
// the term once no entries remain. The caller must hold Mu for writing.
func (ii *InvertedIndex) Remove(term string, docID uint32, field string) {
	pl, ok := ii.Index[term]
	if !ok {
		return
	}
	i, found := pl.search(docID, field)
	if !found {
		return
	}
	pl = append(pl[:i], pl[i+1:]...)
	if len(pl) == 0 {
		delete(ii.Index, term)
		return
	}
	ii.Index[term] = pl
}

// SetFieldLength records the token count of a document field. A zero length
// forgets the document. The caller must hold Mu for writing.
func (ii *InvertedIndex) SetFieldLength(field string, docID uint32, n int) {
	if ii.FieldLengths == nil {
		ii.FieldLengths = make(map[string]map[uint32]int)
	}
	lengths := ii.FieldLengths[field]
	if n == 0 {
		if lengths != nil {
			delete(lengths, docID)
		}
		return
	}
	if lengths == nil {
		lengths = make(map[uint32]int)
		ii.FieldLengths[field] = lengths
	}
	lengths[docID] = n
}

// FieldLength returns the token count of a document field.
func (ii *InvertedIndex) FieldLength(field string, docID uint32) int {
	return ii.FieldLengths[field][docID]
}

// AverageFieldLength returns the mean token count of field over the
// documents that have it.
func (ii *InvertedIndex) AverageFieldLength(field string) float64 {
	lengths := ii.FieldLengths[field]
	if len(lengths) == 0 {
		return 0
	}
	total := 0
	for _, n := range lengths {
		total += n
	}
	return float64(total) / float64(len(lengths))
}

// DocFreq returns how many documents contain term as a whole word in field,
// or in any field when field is empty.
func (ii *InvertedIndex) DocFreq(term, field string) int {
	pl := ii.Index[term]
	count := 0
	var last uint32
	for _, e := range pl {
		if !e.IsFullWord() || (field != "" && e.FieldName != field) {
			continue
		}
		if count > 0 && e.DocID == last {
			continue
		}
		count++
		last = e.DocID
	}
	return count
}

// Terms returns every term that occurs as a whole word, sorted.
func (ii *InvertedIndex) Terms() []string {
	terms := make([]string, 0, len(ii.Index))
	for term, pl := range ii.Index {
		for _, e := range pl {
			if e.IsFullWord() {
				terms = append(terms, term)
				break
			}
		}
	}
	sort.Strings(terms)
	return terms
}

// Reset drops every posting and field length. The caller must hold Mu for writing.
func (ii *InvertedIndex) Reset() {
	ii.Index = make(map[string]PostingList)
	ii.FieldLengths = make(map[string]map[uint32]int)
}

// gobInvertedIndexData is a helper struct for Gob encoding/decoding InvertedIndex data.
// It excludes the mutex.
type gobInvertedIndexData struct {
	Index        map[string]PostingList
	Settings     *config.IndexSettings
	FieldLengths map[string]map[uint32]int
}

// GobEncode implements the gob.GobEncoder interface for InvertedIndex.
func (ii *InvertedIndex) GobEncode() ([]byte, error) {
	ii.Mu.RLock()
	defer ii.Mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobInvertedIndexData{
		Index:        ii.Index,
		Settings:     ii.Settings,
		FieldLengths: ii.FieldLengths,
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for InvertedIndex.
func (ii *InvertedIndex) GobDecode(data []byte) error {
	var decoded gobInvertedIndexData
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decoded); err != nil {
		return err
	}

	ii.Mu.Lock()
	defer ii.Mu.Unlock()

	ii.Index = decoded.Index
	ii.Settings = decoded.Settings
	ii.FieldLengths = decoded.FieldLengths

	// Maps are nil after decoding an empty index
	if ii.Index == nil {
		ii.Index = make(map[string]PostingList)
	}
	if ii.FieldLengths == nil {
		ii.FieldLengths = make(map[string]map[uint32]int)
	}
	return nil
}
