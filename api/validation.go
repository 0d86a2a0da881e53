// Package api provides validation utilities for API request handling.
package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/model"
)

const (
	maxIndexNameLength = 128
	defaultListLimit   = 20
	maxListLimit       = 100
)

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects every problem found in a request, so clients see
// them all in one response.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddError records a problem with field.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any problem was recorded.
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

func (vr *ValidationResult) merge(other *ValidationResult) {
	for _, e := range other.Errors {
		vr.AddError(e.Field, e.Message)
	}
}

// ValidateIndexName checks a name used as an index identifier. Index names
// become directory names under the data directory.
func ValidateIndexName(indexName string) *ValidationResult {
	return validateName("indexName", "Index name", indexName)
}

func validateName(field, label, name string) *ValidationResult {
	result := newValidationResult()

	switch {
	case name == "":
		result.AddError(field, label+" is required")
	case strings.TrimSpace(name) != name:
		result.AddError(field, label+" cannot have leading or trailing whitespace")
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		result.AddError(field, label+" cannot be a path")
	case len(name) > maxIndexNameLength:
		result.AddError(field, fmt.Sprintf("%s cannot be longer than %d bytes", label, maxIndexNameLength))
	}
	return result
}

// ValidateDocumentID checks a document ID taken from the URL.
func ValidateDocumentID(documentID string) *ValidationResult {
	result := newValidationResult()

	if documentID == "" {
		result.AddError("documentID", "Document ID is required")
	} else if strings.TrimSpace(documentID) != documentID {
		result.AddError("documentID", "Document ID cannot have leading or trailing whitespace")
	}
	return result
}

// ValidateIndexSettings applies defaults to settings and checks them for
// index creation.
func ValidateIndexSettings(settings *config.IndexSettings) *ValidationResult {
	result := newValidationResult()

	if settings == nil {
		result.AddError("settings", "Index settings are required")
		return result
	}

	if settings.Name == "" {
		result.AddError("name", "Index name is required")
	} else {
		result.merge(validateName("name", "Index name", settings.Name))
	}

	settings.ApplyDefaults()
	for _, conflict := range settings.ValidateFieldNames() {
		result.AddError("field_validation", conflict)
	}
	return result
}

// ValidateDocuments checks that every document carries a usable documentID.
// IDs repeated within one batch are rejected because only the last copy
// would survive.
func ValidateDocuments(docs []model.Document) *ValidationResult {
	result := newValidationResult()

	if len(docs) == 0 {
		result.AddError("documents", "No documents provided")
		return result
	}

	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		field := fmt.Sprintf("documents[%d].documentID", i)

		raw, exists := doc[model.DocumentIDField]
		if !exists {
			result.AddError(field, "Document must have a 'documentID' field")
			continue
		}
		id, ok := raw.(string)
		if !ok {
			result.AddError(field, "Document ID must be a string")
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			result.AddError(field, "Document ID cannot be empty or whitespace-only")
			continue
		}
		if first, dup := seen[id]; dup {
			result.AddError(field, fmt.Sprintf("Document ID '%s' is repeated (first at documents[%d])", id, first))
			continue
		}
		seen[id] = i
	}
	return result
}

// ValidateListWindow applies the document listing defaults: a zero limit
// means defaultListLimit and larger limits are clamped to maxListLimit.
func ValidateListWindow(offset, limit int) (int, int, *ValidationResult) {
	result := newValidationResult()

	if offset < 0 {
		result.AddError("offset", "offset cannot be negative")
	}
	switch {
	case limit < 0:
		result.AddError("limit", "limit cannot be negative")
	case limit == 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return offset, limit, result
}

// ValidateSearchWindow checks num_wanted against the configured maximum.
// offset+num_wanted overflow is left to the searcher, which reports it as an
// invalid argument.
func ValidateSearchWindow(numWanted, maxNumWanted uint32) *ValidationResult {
	result := newValidationResult()
	if maxNumWanted > 0 && numWanted > maxNumWanted {
		result.AddError("num_wanted", fmt.Sprintf("num_wanted cannot exceed %d", maxNumWanted))
	}
	return result
}

// ValidateSortCriteria checks the shape of a sort list. Whether a field is
// sortable is decided by the index.
func ValidateSortCriteria(criteria []config.RankingCriterion) *ValidationResult {
	result := newValidationResult()
	for i, criterion := range criteria {
		if strings.TrimSpace(criterion.Field) == "" {
			result.AddError(fmt.Sprintf("sort[%d].field", i), "Sort field is required")
		}
		if order := strings.ToLower(criterion.Order); order != "" && order != "asc" && order != "desc" {
			result.AddError(fmt.Sprintf("sort[%d].order", i), "Sort order must be 'asc' or 'desc'")
		}
	}
	return result
}

// ValidateRenameRequest checks both names of a rename. The new name follows
// the same rules as a new index name.
func ValidateRenameRequest(oldName, newName string) *ValidationResult {
	result := newValidationResult()

	if oldName == "" {
		result.AddError("oldName", "Current index name is required")
	}
	if newName == "" {
		result.AddError("new_name", "New name is required and cannot be empty")
		return result
	}
	if strings.TrimSpace(newName) != newName {
		result.AddError("new_name", "New name cannot have leading or trailing whitespace")
	} else {
		result.merge(validateName("new_name", "New name", newName))
	}
	if oldName == newName {
		result.AddError("new_name", "New name must be different from current name")
	}
	return result
}

// SendValidationError writes result as a 400 response.
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}

// ValidateJSONBinding binds the request body into target.
func ValidateJSONBinding(c *gin.Context, target any) *ValidationResult {
	result := newValidationResult()
	if err := c.ShouldBindJSON(target); err != nil {
		result.AddError("request_body", "Invalid request body: "+err.Error())
	}
	return result
}

// ValidateQueryBinding binds the query string into target.
func ValidateQueryBinding(c *gin.Context, target any) *ValidationResult {
	result := newValidationResult()
	if err := c.ShouldBindQuery(target); err != nil {
		result.AddError("query_parameters", "Invalid query parameters: "+err.Error())
	}
	return result
}
