package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		sentinel error
	}{
		{
			name:     "index not found",
			err:      NewIndexNotFoundError("test-index"),
			message:  "index named 'test-index' not found",
			sentinel: ErrIndexNotFound,
		},
		{
			name:     "index already exists",
			err:      NewIndexAlreadyExistsError("existing-index"),
			message:  "index named 'existing-index' already exists",
			sentinel: ErrIndexAlreadyExists,
		},
		{
			name:     "document not found",
			err:      NewDocumentNotFoundError("doc123"),
			message:  "document with ID 'doc123' not found",
			sentinel: ErrDocumentNotFound,
		},
		{
			name:     "document not found in index",
			err:      NewDocumentNotFoundError("doc123", "test-index"),
			message:  "document with ID 'doc123' not found in index 'test-index'",
			sentinel: ErrDocumentNotFound,
		},
		{
			name:     "job not found",
			err:      NewJobNotFoundError("job-456"),
			message:  "job with ID 'job-456' not found",
			sentinel: ErrJobNotFound,
		},
		{
			name:     "validation with field",
			err:      NewValidationError("name", "cannot be empty"),
			message:  "validation error for field 'name': cannot be empty",
			sentinel: ErrInvalidInput,
		},
		{
			name:     "validation without field",
			err:      NewValidationError("", "cannot be empty"),
			message:  "validation error: cannot be empty",
			sentinel: ErrInvalidInput,
		},
		{
			name:     "same name",
			err:      NewSameNameError("same-name"),
			message:  "new name 'same-name' is the same as the current name",
			sentinel: ErrSameName,
		},
		{
			name:     "invalid argument",
			err:      NewInvalidArgumentError("offset", "offset + num_wanted overflows"),
			message:  "invalid argument 'offset': offset + num_wanted overflows",
			sentinel: ErrInvalidArgument,
		},
		{
			name:     "invalid argument without param",
			err:      NewInvalidArgumentError("", "schema is nil"),
			message:  "invalid argument: schema is nil",
			sentinel: ErrInvalidArgument,
		},
		{
			name:     "invalid type",
			err:      InvalidTypeError("query", 42),
			message:  "invalid argument 'query': invalid type int",
			sentinel: ErrInvalidArgument,
		},
		{
			name:     "parse error",
			err:      NewParseError("(a", 2, "missing closing parenthesis"),
			message:  `cannot parse query "(a" at position 2: missing closing parenthesis`,
			sentinel: ErrParse,
		},
		{
			name:     "unsupported query",
			err:      NewUnsupportedQueryError("sqlite", "NOT(x)"),
			message:  "backend 'sqlite' cannot execute query NOT(x)",
			sentinel: ErrUnsupportedQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestTypedErrorsDoNotCrossMatch(t *testing.T) {
	assert.NotErrorIs(t, NewIndexNotFoundError("x"), ErrDocumentNotFound)
	assert.NotErrorIs(t, NewParseError("x", 0, "bad"), ErrInvalidArgument)
	assert.NotErrorIs(t, NewInvalidArgumentError("q", "bad"), ErrParse)
}

func TestErrorChaining(t *testing.T) {
	originalErr := NewIndexNotFoundError("test-index")
	wrappedErr := errors.Join(originalErr, errors.New("additional context"))

	assert.ErrorIs(t, wrappedErr, ErrIndexNotFound)

	var indexErr *IndexNotFoundError
	require.ErrorAs(t, wrappedErr, &indexErr)
	assert.Equal(t, "test-index", indexErr.IndexName)
}

func TestParseErrorSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("glean query: %w", NewParseError(`"open`, 0, "unterminated phrase"))

	var parseErr *ParseError
	require.ErrorAs(t, wrapped, &parseErr)
	assert.Equal(t, `"open`, parseErr.Input)
	assert.ErrorIs(t, wrapped, ErrParse)
}
