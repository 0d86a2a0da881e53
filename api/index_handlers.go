package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/config"
)

// CreateIndexHandler handles the request to create a new index.
// Request Body: config.IndexSettings
func (api *API) CreateIndexHandler(c *gin.Context) {
	var settings config.IndexSettings

	if result := ValidateJSONBinding(c, &settings); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateIndexSettings(&settings); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.CreateIndex(settings); err != nil {
		SendEngineError(c, "create index", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Index '" + settings.Name + "' created successfully",
		"backend": settings.Backend,
	})
}

// ListIndexesHandler lists all available indexes.
func (api *API) ListIndexesHandler(c *gin.Context) {
	names := api.engine.ListIndexes()
	c.JSON(http.StatusOK, gin.H{"indexes": names, "count": len(names)})
}

// GetIndexHandler retrieves the settings of an index.
func (api *API) GetIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	settings, err := api.engine.GetIndexSettings(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// DeleteIndexHandler handles deleting an index.
func (api *API) DeleteIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if err := api.engine.DeleteIndex(indexName); err != nil {
		SendEngineError(c, "delete index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Index '" + indexName + "' deleted successfully"})
}

// RenameIndexRequest defines the structure for renaming an index
type RenameIndexRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

// RenameIndexHandler handles requests to rename an index
func (api *API) RenameIndexHandler(c *gin.Context) {
	oldName := c.Param("indexName")

	var req RenameIndexRequest
	if result := ValidateJSONBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateRenameRequest(oldName, req.NewName); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.RenameIndex(oldName, req.NewName); err != nil {
		SendEngineError(c, "rename index", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Index renamed successfully",
		"old_name": oldName,
		"new_name": req.NewName,
	})
}

// UpdateIndexSettingsHandler applies a partial settings update in a
// background job. Keys absent from the body keep their current value; a
// null key resets the setting.
func (api *API) UpdateIndexSettingsHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	current, err := api.engine.GetIndexSettings(indexName)
	if err != nil {
		SendEngineError(c, "get index settings", err)
		return
	}

	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	settings, result := applySettingsPatch(current, patch)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	jobID, err := api.engine.UpdateIndexSettingsAsync(indexName, settings)
	if err != nil {
		status, _ := classifyError(err)
		if status != http.StatusInternalServerError {
			SendEngineError(c, "update index settings", err)
			return
		}
		SendJobExecutionError(c, "settings update", err)
		return
	}

	api.logger.Info("settings_update_accepted", slog.String("index", indexName), slog.String("job_id", jobID))
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Settings update started for index '" + indexName + "'",
		"job_id":  jobID,
	})
}

// updatableSettings lists the keys a settings patch may carry.
var updatableSettings = map[string]func(*config.IndexSettings) any{
	"searchable_fields":            func(s *config.IndexSettings) any { return &s.SearchableFields },
	"filterable_fields":            func(s *config.IndexSettings) any { return &s.FilterableFields },
	"field_types":                  func(s *config.IndexSettings) any { return &s.FieldTypes },
	"ranking_criteria":             func(s *config.IndexSettings) any { return &s.RankingCriteria },
	"min_word_size_for_1_typo":     func(s *config.IndexSettings) any { return &s.MinWordSizeFor1Typo },
	"min_word_size_for_2_typos":    func(s *config.IndexSettings) any { return &s.MinWordSizeFor2Typos },
	"fields_without_prefix_search": func(s *config.IndexSettings) any { return &s.FieldsWithoutPrefixSearch },
	"no_typo_tolerance_fields":     func(s *config.IndexSettings) any { return &s.NoTypoToleranceFields },
	"non_typo_tolerant_words":      func(s *config.IndexSettings) any { return &s.NonTypoTolerantWords },
	"distinct_field":               func(s *config.IndexSettings) any { return &s.DistinctField },
	"backend":                      func(s *config.IndexSettings) any { return &s.Backend },
}

// applySettingsPatch overlays the keys of patch on current.
func applySettingsPatch(current config.IndexSettings, patch map[string]json.RawMessage) (config.IndexSettings, *ValidationResult) {
	result := &ValidationResult{Valid: true}
	settings := current

	if len(patch) == 0 {
		result.AddError("settings", "No updatable fields provided")
		return settings, result
	}

	for key, raw := range patch {
		target, ok := updatableSettings[key]
		if !ok {
			if key == "name" {
				result.AddError(key, "Use the rename endpoint to change the index name")
			} else {
				result.AddError(key, "Unknown or read-only setting")
			}
			continue
		}
		// reset first: unmarshalling into the shared field_types map would merge
		resetSetting(&settings, key)
		if string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, target(&settings)); err != nil {
			result.AddError(key, fmt.Sprintf("Invalid value: %v", err))
		}
	}

	if !result.HasErrors() {
		if conflicts := settings.ValidateFieldNames(); len(conflicts) > 0 {
			for _, conflict := range conflicts {
				result.AddError("field_validation", conflict)
			}
		}
	}
	return settings, result
}

func resetSetting(s *config.IndexSettings, key string) {
	switch key {
	case "searchable_fields":
		s.SearchableFields = []string{}
	case "filterable_fields":
		s.FilterableFields = []string{}
	case "field_types":
		s.FieldTypes = map[string]config.FieldType{}
	case "ranking_criteria":
		s.RankingCriteria = []config.RankingCriterion{}
	case "min_word_size_for_1_typo":
		s.MinWordSizeFor1Typo = 0
	case "min_word_size_for_2_typos":
		s.MinWordSizeFor2Typos = 0
	case "fields_without_prefix_search":
		s.FieldsWithoutPrefixSearch = []string{}
	case "no_typo_tolerance_fields":
		s.NoTypoToleranceFields = []string{}
	case "non_typo_tolerant_words":
		s.NonTypoTolerantWords = []string{}
	case "distinct_field":
		s.DistinctField = ""
	case "backend":
		s.Backend = ""
	}
}

// GetIndexStatsHandler returns statistics for a specific index
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}

	settings := indexAccessor.Settings()
	c.JSON(http.StatusOK, gin.H{
		"name":              settings.Name,
		"backend":           settings.Backend,
		"document_count":    indexAccessor.DocumentCount(),
		"searchable_fields": settings.SearchableFields,
		"filterable_fields": settings.FilterableFields,
		"field_types":       settings.FieldTypes,
		"typo_settings": gin.H{
			"min_word_size_for_1_typo":  settings.MinWordSizeFor1Typo,
			"min_word_size_for_2_typos": settings.MinWordSizeFor2Typos,
		},
		"field_settings": gin.H{
			"fields_without_prefix_search": settings.FieldsWithoutPrefixSearch,
			"no_typo_tolerance_fields":     settings.NoTypoToleranceFields,
			"distinct_field":               settings.DistinctField,
		},
	})
}
