// Package config provides configuration structures for the searcher.
// It defines per-index settings (fields, field types, ranking, typo tolerance,
// backend selection) and the process-wide engine configuration.
package config

import (
	"strings"
)

// FieldType describes how a field's values are analyzed and compared.
type FieldType string

const (
	// FieldTypeText values are tokenized; matching is per token.
	FieldTypeText FieldType = "text"
	// FieldTypeKeyword values are matched as a single lowercased token.
	FieldTypeKeyword FieldType = "keyword"
	// FieldTypeNumeric values are compared as float64.
	FieldTypeNumeric FieldType = "numeric"
	// FieldTypeDatetime values are RFC3339 strings or time.Time compared chronologically.
	FieldTypeDatetime FieldType = "datetime"
)

// Backend selects the concrete searcher serving an index.
type Backend string

const (
	// BackendInverted serves queries from the built-in inverted index.
	BackendInverted Backend = "inverted"
	// BackendBleve mirrors documents into a bleve index and serves queries from it.
	BackendBleve Backend = "bleve"
	// BackendSQLite mirrors documents into an SQLite FTS5 table and serves queries from it.
	BackendSQLite Backend = "sqlite"
)

// Special ranking criteria fields.
const (
	ScoreField = "~score"
	DocIDField = "~id"
)

// RankingCriterion defines a single field and direction to use for ranking search results.
// The ranking is applied in the order specified in the IndexSettings.RankingCriteria slice.
// Fields can be any document field, not just those in SearchableFields or FilterableFields.
type RankingCriterion struct {
	Field string `json:"field"` // Field name to rank by (e.g., "popularity", "~score"). Can be any document field.
	Order string `json:"order"` // Sort order: "asc" for ascending, "desc" for descending
}

// IndexSettings contains all configuration options for a search index.
// This includes which fields are searchable, filterable, their types, ranking
// criteria, typo tolerance and the backend that executes queries.
//
// SearchableFields order is the default field order of the query parser:
// an unqualified term is expanded across these fields in this order.
type IndexSettings struct {
	Name                      string               `json:"name"`                         // Unique name for the index
	SearchableFields          []string             `json:"searchable_fields"`            // Fields that can be searched, in priority order (e.g., ["title", "cast", "genres"])
	FilterableFields          []string             `json:"filterable_fields"`            // Fields that can be used in range queries and field sorts
	FieldTypes                map[string]FieldType `json:"field_types,omitempty"`        // Per-field type; searchable fields default to text, filterable to keyword
	RankingCriteria           []RankingCriterion   `json:"ranking_criteria"`             // Ordered list of ranking criteria, applied in sequence. Fields can be any document field.
	MinWordSizeFor1Typo       int                  `json:"min_word_size_for_1_typo"`     // Minimum word length to allow 1 typo (e.g., 4)
	MinWordSizeFor2Typos      int                  `json:"min_word_size_for_2_typos"`    // Minimum word length to allow 2 typos (e.g., 7)
	FieldsWithoutPrefixSearch []string             `json:"fields_without_prefix_search"` // Fields for which prefix/n-gram search is disabled (only whole words indexed). Must be in SearchableFields.
	NoTypoToleranceFields     []string             `json:"no_typo_tolerance_fields"`     // Fields for which typo tolerance is disabled (only exact matches). Must be in SearchableFields.
	NonTypoTolerantWords      []string             `json:"non_typo_tolerant_words"`      // Specific words that should never be typo-matched (e.g., sensitive terms, proper nouns)
	DistinctField             string               `json:"distinct_field"`               // Field to use for deduplication to avoid returning duplicate documents. Can be any document field.
	Backend                   Backend              `json:"backend,omitempty"`            // Query backend: inverted (default), bleve or sqlite
}

// ValidateFieldNames validates field names for basic requirements.
func (settings *IndexSettings) ValidateFieldNames() []string {
	var conflicts []string

	// Check for duplicate field names within each category
	conflicts = append(conflicts, checkDuplicates("searchable_fields", settings.SearchableFields)...)
	conflicts = append(conflicts, checkDuplicates("filterable_fields", settings.FilterableFields)...)
	conflicts = append(conflicts, checkDuplicates("fields_without_prefix_search", settings.FieldsWithoutPrefixSearch)...)
	conflicts = append(conflicts, checkDuplicates("no_typo_tolerance_fields", settings.NoTypoToleranceFields)...)
	conflicts = append(conflicts, checkDuplicates("non_typo_tolerant_words", settings.NonTypoTolerantWords)...)

	// Validate field references across configurations
	conflicts = append(conflicts, settings.validateFieldReferences()...)
	conflicts = append(conflicts, settings.validateFieldTypes()...)

	// Basic field name validation (empty names, reserved characters)
	allFields := make([]string, 0)
	allFields = append(allFields, settings.SearchableFields...)
	allFields = append(allFields, settings.FilterableFields...)
	allFields = append(allFields, settings.FieldsWithoutPrefixSearch...)
	allFields = append(allFields, settings.NoTypoToleranceFields...)
	allFields = append(allFields, settings.NonTypoTolerantWords...)
	if settings.DistinctField != "" {
		allFields = append(allFields, settings.DistinctField)
	}

	for _, field := range allFields {
		if strings.TrimSpace(field) == "" {
			conflicts = append(conflicts, "Field name cannot be empty or whitespace-only")
		}
	}

	// The query parser uses ':' to qualify terms, so a field name cannot contain it
	for _, field := range append(append([]string{}, settings.SearchableFields...), settings.FilterableFields...) {
		if strings.ContainsAny(field, ": \t\"") {
			conflicts = append(conflicts, "Field name '"+field+"' contains a reserved character")
		}
	}

	switch settings.Backend {
	case "", BackendInverted, BackendBleve, BackendSQLite:
	default:
		conflicts = append(conflicts, "Unknown backend '"+string(settings.Backend)+"' (must be 'inverted', 'bleve' or 'sqlite')")
	}

	return conflicts
}

// checkDuplicates checks for duplicate values in a slice and returns error messages
func checkDuplicates(fieldName string, fields []string) []string {
	var errors []string
	seen := make(map[string]bool)

	for _, field := range fields {
		if seen[field] {
			errors = append(errors, "Duplicate field '"+field+"' found in "+fieldName)
		}
		seen[field] = true
	}

	return errors
}

// validateFieldReferences validates that field references across configurations are valid
func (settings *IndexSettings) validateFieldReferences() []string {
	var errors []string

	searchableFieldsSet := make(map[string]bool)
	for _, field := range settings.SearchableFields {
		searchableFieldsSet[field] = true
	}

	for _, field := range settings.FieldsWithoutPrefixSearch {
		if !searchableFieldsSet[field] {
			errors = append(errors, "Field '"+field+"' in fields_without_prefix_search is not in searchable_fields")
		}
	}

	for _, field := range settings.NoTypoToleranceFields {
		if !searchableFieldsSet[field] {
			errors = append(errors, "Field '"+field+"' in no_typo_tolerance_fields is not in searchable_fields")
		}
	}

	// Note: DistinctField and RankingCriteria fields can be any document field
	for _, criterion := range settings.RankingCriteria {
		if criterion.Order != "asc" && criterion.Order != "desc" {
			errors = append(errors, "Invalid order '"+criterion.Order+"' for field '"+criterion.Field+"' in ranking_criteria (must be 'asc' or 'desc')")
		}
		if strings.HasPrefix(criterion.Field, "~") && criterion.Field != ScoreField && criterion.Field != DocIDField {
			errors = append(errors, "Unknown special field '"+criterion.Field+"' in ranking_criteria (must be '~score' or '~id')")
		}
	}

	return errors
}

// validateFieldTypes checks that typed fields are declared and types are known.
func (settings *IndexSettings) validateFieldTypes() []string {
	var errors []string

	declared := make(map[string]bool)
	for _, field := range settings.SearchableFields {
		declared[field] = true
	}
	for _, field := range settings.FilterableFields {
		declared[field] = true
	}

	for field, fieldType := range settings.FieldTypes {
		if !declared[field] {
			errors = append(errors, "Field '"+field+"' in field_types is neither searchable nor filterable")
		}
		switch fieldType {
		case FieldTypeText, FieldTypeKeyword, FieldTypeNumeric, FieldTypeDatetime:
		default:
			errors = append(errors, "Unknown type '"+string(fieldType)+"' for field '"+field+"'")
		}
	}

	return errors
}

// TypeOf returns the declared type of a field, falling back to text for
// searchable fields and keyword for everything else.
func (settings *IndexSettings) TypeOf(field string) FieldType {
	if t, ok := settings.FieldTypes[field]; ok {
		return t
	}
	for _, f := range settings.SearchableFields {
		if f == field {
			return FieldTypeText
		}
	}
	return FieldTypeKeyword
}

// ApplyDefaults applies default values to the index settings
func (settings *IndexSettings) ApplyDefaults() {
	// Set default typo tolerance settings if not specified
	if settings.MinWordSizeFor1Typo == 0 {
		settings.MinWordSizeFor1Typo = 4
	}
	if settings.MinWordSizeFor2Typos == 0 {
		settings.MinWordSizeFor2Typos = 7
	}

	// Ensure MinWordSizeFor2Typos is at least as large as MinWordSizeFor1Typo
	if settings.MinWordSizeFor2Typos < settings.MinWordSizeFor1Typo {
		settings.MinWordSizeFor2Typos = settings.MinWordSizeFor1Typo + 1
	}

	if settings.Backend == "" {
		settings.Backend = BackendInverted
	}

	// Initialize empty collections if nil to prevent nil pointer issues
	if settings.SearchableFields == nil {
		settings.SearchableFields = []string{}
	}
	if settings.FilterableFields == nil {
		settings.FilterableFields = []string{}
	}
	if settings.FieldTypes == nil {
		settings.FieldTypes = map[string]FieldType{}
	}
	if settings.FieldsWithoutPrefixSearch == nil {
		settings.FieldsWithoutPrefixSearch = []string{}
	}
	if settings.NoTypoToleranceFields == nil {
		settings.NoTypoToleranceFields = []string{}
	}
	if settings.NonTypoTolerantWords == nil {
		settings.NonTypoTolerantWords = []string{}
	}
	if settings.RankingCriteria == nil {
		settings.RankingCriteria = []RankingCriterion{}
	}
}
