package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/jobs"
	"github.com/gcbaptista/go-searcher/model"
)

// reindexChunkSize is how many documents a reindex adds between progress reports.
const reindexChunkSize = 1000

// UpdateIndexSettings replaces the settings of an index. Changes that alter
// how documents are analyzed rebuild the inverted index; the others only
// rebuild the searchers.
func (e *Engine) UpdateIndexSettings(name string, newSettings config.IndexSettings) error {
	if err := prepareSettingsUpdate(name, &newSettings); err != nil {
		return err
	}
	return e.updateSettings(context.Background(), name, newSettings, nil)
}

// UpdateIndexSettingsAsync validates the new settings and applies them in a
// background job, returning the job ID.
func (e *Engine) UpdateIndexSettingsAsync(name string, newSettings config.IndexSettings) (string, error) {
	if err := prepareSettingsUpdate(name, &newSettings); err != nil {
		return "", err
	}
	inst, err := e.instance(name)
	if err != nil {
		return "", err
	}

	jobType := model.JobTypeUpdateSettings
	if requiresFullReindexing(inst.Settings(), newSettings) {
		jobType = model.JobTypeReindex
	}
	jobID := e.jobManager.CreateJob(jobType, name, map[string]string{
		"operation": "update_settings",
	})
	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, report jobs.ProgressFunc) error {
		return e.updateSettings(ctx, name, newSettings, report)
	})
	if err != nil {
		return "", fmt.Errorf("failed to start settings update job: %w", err)
	}
	return jobID, nil
}

// prepareSettingsUpdate pins the settings to the index name and validates them.
func prepareSettingsUpdate(name string, settings *config.IndexSettings) error {
	if settings.Name != "" && settings.Name != name {
		return errors.NewValidationError("name", fmt.Sprintf("cannot change index name from '%s' to '%s' during settings update", name, settings.Name))
	}
	settings.Name = name
	settings.ApplyDefaults()
	return validateSettings(settings)
}

func (e *Engine) updateSettings(ctx context.Context, name string, newSettings config.IndexSettings, report jobs.ProgressFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, exists := e.indexes[name]
	if !exists {
		return errors.NewIndexNotFoundError(name)
	}

	reindex := requiresFullReindexing(old.Settings(), newSettings)
	inst, err := e.rebuildUnsafe(ctx, old, newSettings, reindex, report)
	if err != nil {
		return fmt.Errorf("failed to apply settings to index '%s': %w", name, err)
	}
	e.indexes[name] = inst

	e.logger.Info("index_settings_updated",
		slog.String("index", name),
		slog.Bool("reindexed", reindex),
		slog.String("backend", string(inst.Settings().Backend)))

	if err := e.persistIndexUnsafe(name, inst); err != nil {
		return fmt.Errorf("failed to save updated settings for index '%s': %w", name, err)
	}
	return nil
}

// requiresFullReindexing reports whether the inverted index built under
// oldSettings is invalid under newSettings. Ranking, typo tolerance, distinct
// and backend changes are applied at search time.
func requiresFullReindexing(oldSettings, newSettings config.IndexSettings) bool {
	if !slices.Equal(oldSettings.SearchableFields, newSettings.SearchableFields) {
		return true
	}
	if !sameSet(oldSettings.FieldsWithoutPrefixSearch, newSettings.FieldsWithoutPrefixSearch) {
		return true
	}
	for _, field := range newSettings.SearchableFields {
		if oldSettings.TypeOf(field) != newSettings.TypeOf(field) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
