// Package schema describes the field structure of an index.
//
// A Schema is built once from config.IndexSettings and never changes
// afterwards, so a single *Schema may be shared by any number of searchers,
// query parsers and backends running concurrently.
package schema

import (
	"fmt"
	"slices"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
)

// Field describes one document field.
type Field struct {
	Name         string
	Type         config.FieldType
	Searchable   bool
	Filterable   bool
	PrefixSearch bool
	TypoTolerant bool
}

// Schema is the immutable field description of an index.
type Schema struct {
	name          string
	fields        map[string]Field
	order         []string
	searchable    []string
	filterable    []string
	distinctField string
	minTypo1      int
	minTypo2      int
	noTypoWords   map[string]struct{}
	ranking       []config.RankingCriterion
}

// New builds a Schema from index settings. Defaults are applied to a copy of
// the settings; the caller's value is not modified.
func New(settings config.IndexSettings) (*Schema, error) {
	settings.ApplyDefaults()
	if problems := settings.ValidateFieldNames(); len(problems) > 0 {
		return nil, errors.NewValidationError("settings", fmt.Sprintf("%v", problems))
	}

	s := &Schema{
		name:          settings.Name,
		fields:        make(map[string]Field),
		searchable:    slices.Clone(settings.SearchableFields),
		filterable:    slices.Clone(settings.FilterableFields),
		distinctField: settings.DistinctField,
		minTypo1:      settings.MinWordSizeFor1Typo,
		minTypo2:      settings.MinWordSizeFor2Typos,
		noTypoWords:   make(map[string]struct{}, len(settings.NonTypoTolerantWords)),
		ranking:       slices.Clone(settings.RankingCriteria),
	}

	noPrefix := toSet(settings.FieldsWithoutPrefixSearch)
	noTypo := toSet(settings.NoTypoToleranceFields)

	add := func(name string) *Field {
		f, ok := s.fields[name]
		if !ok {
			f = Field{Name: name, Type: settings.TypeOf(name)}
			s.order = append(s.order, name)
		}
		s.fields[name] = f
		return &f
	}

	for _, name := range settings.SearchableFields {
		f := add(name)
		f.Searchable = true
		_, skipPrefix := noPrefix[name]
		_, skipTypo := noTypo[name]
		// Prefix and typo matching only apply to tokenized text
		f.PrefixSearch = !skipPrefix && f.Type == config.FieldTypeText
		f.TypoTolerant = !skipTypo && f.Type == config.FieldTypeText
		s.fields[name] = *f
	}
	for _, name := range settings.FilterableFields {
		f := add(name)
		f.Filterable = true
		s.fields[name] = *f
	}
	for _, w := range settings.NonTypoTolerantWords {
		s.noTypoWords[w] = struct{}{}
	}

	return s, nil
}

// MustNew is like New but panics on invalid settings. Intended for tests.
func MustNew(settings config.IndexSettings) *Schema {
	s, err := New(settings)
	if err != nil {
		panic(err)
	}
	return s
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Name returns the index name the schema was built for.
func (s *Schema) Name() string { return s.name }

// Fields returns all fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Has reports whether the schema declares the field.
func (s *Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// IsSearchable reports whether the field is full-text searchable.
func (s *Schema) IsSearchable(name string) bool {
	return s.fields[name].Searchable
}

// SearchableFields returns the searchable fields in priority order.
func (s *Schema) SearchableFields() []string { return slices.Clone(s.searchable) }

// FilterableFields returns the filterable fields.
func (s *Schema) FilterableFields() []string { return slices.Clone(s.filterable) }

// DistinctField returns the deduplication field, or "".
func (s *Schema) DistinctField() string { return s.distinctField }

// RankingCriteria returns the index's default ranking.
func (s *Schema) RankingCriteria() []config.RankingCriterion { return slices.Clone(s.ranking) }

// MaxTypos returns how many edits a query word of the given length may carry.
func (s *Schema) MaxTypos(word string) int {
	if _, blocked := s.noTypoWords[word]; blocked {
		return 0
	}
	n := len([]rune(word))
	switch {
	case n >= s.minTypo2:
		return 2
	case n >= s.minTypo1:
		return 1
	default:
		return 0
	}
}

// Compatible reports whether two schemas describe the same fields with the
// same types, which is what merging results across searchers requires.
func (s *Schema) Compatible(other *Schema) bool {
	if s == other {
		return true
	}
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for name, f := range s.fields {
		o, ok := other.fields[name]
		if !ok || o.Type != f.Type || o.Searchable != f.Searchable {
			return false
		}
	}
	return true
}
