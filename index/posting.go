package index

// PostingEntry records that a term occurs in one field of one document.
type PostingEntry struct {
	DocID     uint32 // Internal numeric ID
	FieldName string // Field the term was found in (e.g., "title", "tags")
	// TermFreq counts occurrences of the term as a whole word.
	TermFreq int
	// PrefixFreq counts words of the field that the term is a strict prefix of.
	// Only prefix-enabled fields carry these n-gram occurrences.
	PrefixFreq int
	Positions  []int // Token positions of the whole-word occurrences, ascending
}

// IsFullWord reports whether the term appears as a complete word, rather than
// only as a generated prefix n-gram.
func (e PostingEntry) IsFullWord() bool { return e.TermFreq > 0 }

// PostingList holds the entries of one term, sorted by DocID then FieldName.
type PostingList []PostingEntry

// search returns the position of (docID, field) or where it would be inserted.
func (pl PostingList) search(docID uint32, field string) (int, bool) {
	lo, hi := 0, len(pl)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		e := pl[mid]
		if e.DocID < docID || (e.DocID == docID && e.FieldName < field) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	found := lo < len(pl) && pl[lo].DocID == docID && pl[lo].FieldName == field
	return lo, found
}
