package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFieldNames(t *testing.T) {
	tests := []struct {
		name           string
		settings       IndexSettings
		expectedErrors int
	}{
		{
			name: "ranking criteria can reference any field",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title", "content"},
				FilterableFields: []string{"category", "year"},
				RankingCriteria: []RankingCriterion{
					{Field: "popularity", Order: "desc"},
					{Field: "rating", Order: "asc"},
				},
			},
			expectedErrors: 0,
		},
		{
			name: "distinct field can be any field",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title", "content"},
				DistinctField:    "uuid",
			},
			expectedErrors: 0,
		},
		{
			name: "special ranking fields",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title"},
				RankingCriteria: []RankingCriterion{
					{Field: "~score", Order: "desc"},
					{Field: "~id", Order: "asc"},
				},
			},
			expectedErrors: 0,
		},
		{
			name: "unknown special ranking field",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title"},
				RankingCriteria:  []RankingCriterion{{Field: "~filters", Order: "desc"}},
			},
			expectedErrors: 1,
		},
		{
			name: "invalid ranking order",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title"},
				RankingCriteria:  []RankingCriterion{{Field: "popularity", Order: "invalid"}},
			},
			expectedErrors: 1,
		},
		{
			name: "prefix search exclusion must be searchable",
			settings: IndexSettings{
				Name:                      "test_index",
				SearchableFields:          []string{"title", "content"},
				FieldsWithoutPrefixSearch: []string{"invalid_field"},
			},
			expectedErrors: 1,
		},
		{
			name: "typed field must be declared",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title"},
				FieldTypes:       map[string]FieldType{"year": FieldTypeNumeric},
			},
			expectedErrors: 1,
		},
		{
			name: "unknown field type",
			settings: IndexSettings{
				Name:             "test_index",
				FilterableFields: []string{"year"},
				FieldTypes:       map[string]FieldType{"year": "integer"},
			},
			expectedErrors: 1,
		},
		{
			name: "colon in field name",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"meta:title"},
			},
			expectedErrors: 1,
		},
		{
			name: "unknown backend",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title"},
				Backend:          "lucene",
			},
			expectedErrors: 1,
		},
		{
			name: "comprehensive valid configuration",
			settings: IndexSettings{
				Name:             "test_index",
				SearchableFields: []string{"title", "content", "description"},
				FilterableFields: []string{"category", "year", "released_at"},
				FieldTypes: map[string]FieldType{
					"year":        FieldTypeNumeric,
					"released_at": FieldTypeDatetime,
				},
				RankingCriteria: []RankingCriterion{
					{Field: "popularity", Order: "desc"},
					{Field: "~score", Order: "desc"},
				},
				DistinctField:             "uuid",
				FieldsWithoutPrefixSearch: []string{"title"},
				NoTypoToleranceFields:     []string{"description"},
				Backend:                   BackendBleve,
			},
			expectedErrors: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.settings.ApplyDefaults()
			errors := tt.settings.ValidateFieldNames()
			assert.Len(t, errors, tt.expectedErrors, "errors: %v", errors)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	settings := IndexSettings{Name: "movies", MinWordSizeFor1Typo: 6, MinWordSizeFor2Typos: 3}
	settings.ApplyDefaults()

	assert.Equal(t, 6, settings.MinWordSizeFor1Typo)
	assert.Equal(t, 7, settings.MinWordSizeFor2Typos)
	assert.Equal(t, BackendInverted, settings.Backend)
	assert.NotNil(t, settings.SearchableFields)
	assert.NotNil(t, settings.FieldTypes)
}

func TestTypeOf(t *testing.T) {
	settings := IndexSettings{
		SearchableFields: []string{"title"},
		FilterableFields: []string{"year", "genre"},
		FieldTypes:       map[string]FieldType{"year": FieldTypeNumeric},
	}

	assert.Equal(t, FieldTypeText, settings.TypeOf("title"))
	assert.Equal(t, FieldTypeNumeric, settings.TypeOf("year"))
	assert.Equal(t, FieldTypeKeyword, settings.TypeOf("genre"))
	assert.Equal(t, FieldTypeKeyword, settings.TypeOf("unknown"))
}
