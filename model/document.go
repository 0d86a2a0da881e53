package model

import "fmt"

// DocumentIDField is the key under which every document carries its external ID.
const DocumentIDField = "documentID"

// Document is a flexible map representing a JSON document.
// The documentID is the only required field for document identification.
// Other fields like "title", "year", etc., are accessed by their string keys and depend on index configuration.
// Example: doc["title"], doc["year"]
type Document map[string]interface{}

// GetDocumentID returns the documentID if it's stored in the document map under "documentID" key.
func (d Document) GetDocumentID() (string, bool) {
	if id, ok := d[DocumentIDField]; ok {
		if str, sok := id.(string); sok {
			if str != "" {
				return str, true
			}
		}
	}
	return "", false
}

// Project returns a new document containing only the given fields.
// If fields is empty, returns the full document.
// The documentID field is always included.
func (d Document) Project(fields []string) Document {
	if len(fields) == 0 {
		return d
	}

	projected := make(Document, len(fields)+1)
	if docID, ok := d[DocumentIDField]; ok {
		projected[DocumentIDField] = docID
	}
	for _, field := range fields {
		if v, ok := d[field]; ok {
			projected[field] = v
		}
	}
	return projected
}

// DistinctKey renders a field value as a deduplication key.
// Slices are keyed by their formatted contents.
func (d Document) DistinctKey(field string) (string, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
