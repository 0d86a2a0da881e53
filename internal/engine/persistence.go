package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/persistence"
	"github.com/gcbaptista/go-searcher/store"
)

const (
	dataDirPerm       = 0755
	settingsFile      = "settings.gob"
	invertedIndexFile = "inverted_index.gob"
	documentStoreFile = "document_store.gob"
)

// loadIndexesFromDisk loads every index directory under the data directory.
// Indexes that cannot be loaded are skipped with a warning.
func (e *Engine) loadIndexesFromDisk() {
	items, err := os.ReadDir(e.dataDir)
	if err != nil {
		e.logger.Warn("data_dir_unreadable", slog.String("path", e.dataDir), slog.String("error", err.Error()))
		return
	}

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		name := item.Name()
		inst, err := e.loadIndex(name)
		if err != nil {
			e.logger.Warn("index_load_skipped", slog.String("index", name), slog.String("error", err.Error()))
			continue
		}
		e.indexes[name] = inst
		e.logger.Info("index_loaded", slog.String("index", name), slog.Int("documents", inst.DocumentCount()))
	}
}

func (e *Engine) loadIndex(name string) (*IndexInstance, error) {
	indexPath := filepath.Join(e.dataDir, name)

	var settings config.IndexSettings
	if err := persistence.LoadGob(filepath.Join(indexPath, settingsFile), &settings); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Name != name {
		return nil, fmt.Errorf("settings name '%s' does not match directory name", settings.Name)
	}

	ds := store.New()
	dsPath := filepath.Join(indexPath, documentStoreFile)
	if err := persistence.LoadGob(dsPath, ds); err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load document store: %w", err)
		}
		ds = store.New()
	}

	ii := index.New(&settings)
	iiPath := filepath.Join(indexPath, invertedIndexFile)
	if err := persistence.LoadGob(iiPath, ii); err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load inverted index: %w", err)
		}
		ii = index.New(&settings)
	}

	return newIndexInstance(context.Background(), settings, ii, ds, e.instanceOptions())
}

// PersistIndexData saves the settings, inverted index and document store of
// an index.
func (e *Engine) PersistIndexData(indexName string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, exists := e.indexes[indexName]
	if !exists {
		return errors.NewIndexNotFoundError(indexName)
	}
	return e.persistIndexUnsafe(indexName, inst)
}

// persistIndexUnsafe writes an instance under the directory of name. The
// caller holds e.mu.
func (e *Engine) persistIndexUnsafe(name string, inst *IndexInstance) error {
	indexPath := filepath.Join(e.dataDir, name)
	if err := os.MkdirAll(indexPath, dataDirPerm); err != nil {
		return fmt.Errorf("failed to create directory for index %s: %w", name, err)
	}

	settings := inst.Settings()
	settings.Name = name
	if err := persistence.SaveGob(filepath.Join(indexPath, settingsFile), settings); err != nil {
		return fmt.Errorf("failed to save settings for index %s: %w", name, err)
	}
	// GobEncode of both structures takes their read locks
	if err := persistence.SaveGob(filepath.Join(indexPath, invertedIndexFile), inst.InvertedIndex); err != nil {
		return fmt.Errorf("failed to save inverted index for %s: %w", name, err)
	}
	if err := persistence.SaveGob(filepath.Join(indexPath, documentStoreFile), inst.DocumentStore); err != nil {
		return fmt.Errorf("failed to save document store for %s: %w", name, err)
	}
	e.logger.Debug("index_persisted", slog.String("index", name))
	return nil
}
