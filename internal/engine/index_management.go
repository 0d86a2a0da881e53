package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/jobs"
)

// validateIndexName rejects names that are empty or would escape the data
// directory.
func validateIndexName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.NewValidationError("name", "index name cannot be empty")
	case name == "." || name == "..":
		return errors.NewValidationError("name", fmt.Sprintf("'%s' is not a valid index name", name))
	case strings.ContainsAny(name, `/\`):
		return errors.NewValidationError("name", "index name cannot contain path separators")
	}
	return nil
}

// validateSettings checks settings before an index is built from them.
func validateSettings(settings *config.IndexSettings) error {
	if err := validateIndexName(settings.Name); err != nil {
		return err
	}
	if conflicts := settings.ValidateFieldNames(); len(conflicts) > 0 {
		return errors.NewValidationError("settings", strings.Join(conflicts, "; "))
	}
	return nil
}

// CreateIndex creates a new index with the given settings and persists it.
func (e *Engine) CreateIndex(settings config.IndexSettings) error {
	if err := validateSettings(&settings); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.indexes[settings.Name]; exists {
		return errors.NewIndexAlreadyExistsError(settings.Name)
	}

	inst, err := newIndexInstance(context.Background(), settings, nil, nil, e.instanceOptions())
	if err != nil {
		return fmt.Errorf("failed to create new index instance for '%s': %w", settings.Name, err)
	}
	if err := e.persistIndexUnsafe(settings.Name, inst); err != nil {
		_ = inst.Close()
		return fmt.Errorf("failed to persist new index '%s': %w", settings.Name, err)
	}

	e.indexes[settings.Name] = inst
	e.logger.Info("index_created",
		slog.String("index", settings.Name),
		slog.String("backend", string(inst.Settings().Backend)))
	return nil
}

// DeleteIndex deletes an index and its data from disk.
func (e *Engine) DeleteIndex(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, exists := e.indexes[name]
	if !exists {
		return errors.NewIndexNotFoundError(name)
	}
	delete(e.indexes, name)
	if err := inst.Close(); err != nil {
		e.logger.Warn("index_close_failed", slog.String("index", name), slog.String("error", err.Error()))
	}

	indexPath := filepath.Join(e.dataDir, name)
	if err := os.RemoveAll(indexPath); err != nil {
		return fmt.Errorf("failed to remove index directory %s: %w", indexPath, err)
	}

	e.logger.Info("index_deleted", slog.String("index", name))
	return nil
}

// RenameIndex renames an index. The instance is rebuilt under the new name
// over the same documents.
func (e *Engine) RenameIndex(oldName, newName string) error {
	if oldName == newName {
		return errors.NewSameNameError(oldName)
	}
	if err := validateIndexName(newName); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old, exists := e.indexes[oldName]
	if !exists {
		return errors.NewIndexNotFoundError(oldName)
	}
	if _, exists := e.indexes[newName]; exists {
		return errors.NewIndexAlreadyExistsError(newName)
	}

	// persisted under the new name first so a failure leaves the old index intact
	if err := e.persistIndexUnsafe(newName, old); err != nil {
		_ = os.RemoveAll(filepath.Join(e.dataDir, newName))
		return fmt.Errorf("failed to persist renamed index: %w", err)
	}

	settings := old.Settings()
	settings.Name = newName
	inst, err := e.rebuildUnsafe(context.Background(), old, settings, false, nil)
	if err != nil {
		_ = os.RemoveAll(filepath.Join(e.dataDir, newName))
		return fmt.Errorf("failed to rename index '%s': %w", oldName, err)
	}
	e.indexes[newName] = inst
	delete(e.indexes, oldName)

	oldPath := filepath.Join(e.dataDir, oldName)
	if err := os.RemoveAll(oldPath); err != nil {
		// the rename itself succeeded
		e.logger.Warn("old_index_dir_not_removed", slog.String("path", oldPath), slog.String("error", err.Error()))
	}

	e.logger.Info("index_renamed", slog.String("from", oldName), slog.String("to", newName))
	return nil
}

// rebuildUnsafe replaces old with an instance built from settings and closes
// old. With reindex the documents are analyzed again into a fresh inverted
// index; otherwise the new instance shares old's index and store. The caller
// holds e.mu for writing.
func (e *Engine) rebuildUnsafe(ctx context.Context, old *IndexInstance, settings config.IndexSettings, reindex bool, report jobs.ProgressFunc) (*IndexInstance, error) {
	old.mu.Lock()
	defer old.mu.Unlock()
	if old.closed {
		return nil, errors.ErrSearcherClosed
	}

	if !reindex {
		inst, err := newIndexInstance(ctx, settings, old.InvertedIndex, old.DocumentStore, e.instanceOptions())
		if err != nil {
			return nil, err
		}
		old.closed = true
		_ = old.closeSearchers()
		return inst, nil
	}

	docs := old.documents()
	inst, err := newIndexInstance(ctx, settings, nil, nil, e.instanceOptions())
	if err != nil {
		return nil, err
	}
	for start := 0; start < len(docs); start += reindexChunkSize {
		end := min(start+reindexChunkSize, len(docs))
		if err := inst.AddDocuments(ctx, docs[start:end]); err != nil {
			_ = inst.Close()
			return nil, fmt.Errorf("failed to reindex documents: %w", err)
		}
		if report != nil {
			report(end, len(docs), "reindexing documents")
		}
	}
	old.closed = true
	_ = old.closeSearchers()
	return inst, nil
}
