package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gcbaptista/go-searcher/internal/jobs"
	"github.com/gcbaptista/go-searcher/model"
)

// addDocumentsChunkSize is how many documents an ingestion job adds between
// progress reports.
const addDocumentsChunkSize = 500

// AddDocumentsAsync adds documents to an index in a background job and
// persists the index when it completes.
func (e *Engine) AddDocumentsAsync(indexName string, docs []model.Document) (string, error) {
	if _, err := e.instance(indexName); err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeAddDocuments, indexName, map[string]string{
		"operation":      "add_documents",
		"document_count": strconv.Itoa(len(docs)),
	})
	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, report jobs.ProgressFunc) error {
		return e.executeAddDocumentsJob(ctx, indexName, docs, report)
	})
	if err != nil {
		return "", fmt.Errorf("failed to start add documents job: %w", err)
	}
	return jobID, nil
}

func (e *Engine) executeAddDocumentsJob(ctx context.Context, indexName string, docs []model.Document, report jobs.ProgressFunc) error {
	report(0, len(docs), "starting document addition")
	for start := 0; start < len(docs); start += addDocumentsChunkSize {
		// looked up per chunk: a settings update may have replaced the instance
		inst, err := e.instance(indexName)
		if err != nil {
			return err
		}
		end := min(start+addDocumentsChunkSize, len(docs))
		if err := inst.AddDocuments(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("failed to add documents to index '%s': %w", indexName, err)
		}
		report(end, len(docs), "adding documents")
	}

	if err := e.PersistIndexData(indexName); err != nil {
		return fmt.Errorf("failed to persist updated index '%s': %w", indexName, err)
	}
	report(len(docs), len(docs), "documents added")
	e.logger.Info("documents_added", slog.String("index", indexName), slog.Int("count", len(docs)))
	return nil
}

// DeleteAllDocumentsAsync removes every document of an index in a background
// job and persists the emptied index.
func (e *Engine) DeleteAllDocumentsAsync(indexName string) (string, error) {
	if _, err := e.instance(indexName); err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeDeleteAllDocs, indexName, map[string]string{
		"operation": "delete_all_documents",
	})
	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, _ jobs.ProgressFunc) error {
		inst, err := e.instance(indexName)
		if err != nil {
			return err
		}
		if err := inst.DeleteAllDocuments(ctx); err != nil {
			return fmt.Errorf("failed to delete all documents from index '%s': %w", indexName, err)
		}
		if err := e.PersistIndexData(indexName); err != nil {
			return fmt.Errorf("failed to persist updated index '%s': %w", indexName, err)
		}
		e.logger.Info("documents_cleared", slog.String("index", indexName))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start delete all documents job: %w", err)
	}
	return jobID, nil
}
