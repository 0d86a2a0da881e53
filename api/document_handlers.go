package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/model"
)

// AddDocumentsHandler handles adding/updating documents in an index. The body
// is a single document object or an array of them; documents are added in a
// background job.
func (api *API) AddDocumentsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if _, err := api.engine.GetIndex(indexName); err != nil {
		SendEngineError(c, "get index", err)
		return
	}

	var rawData any
	if err := c.ShouldBindJSON(&rawData); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	var docs []model.Document
	switch data := rawData.(type) {
	case []any:
		docs = make([]model.Document, len(data))
		for i, item := range data {
			docMap, isMap := item.(map[string]any)
			if !isMap {
				SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, fmt.Sprintf("Document at index %d is not a valid object", i))
				return
			}
			docs[i] = docMap
		}
	case map[string]any:
		docs = []model.Document{data}
	default:
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "Expecting a document object or an array of documents")
		return
	}

	if result := ValidateDocuments(docs); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	for _, doc := range docs {
		id, _ := doc.GetDocumentID()
		doc[model.DocumentIDField] = strings.TrimSpace(id)
	}

	jobID, err := api.engine.AddDocumentsAsync(indexName, docs)
	if err != nil {
		SendJobExecutionError(c, "add documents", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":         "accepted",
		"message":        fmt.Sprintf("Document addition started for index '%s' (%d documents)", indexName, len(docs)),
		"job_id":         jobID,
		"document_count": len(docs),
	})
}

// DeleteAllDocumentsHandler deletes every document of an index in a background job.
func (api *API) DeleteAllDocumentsHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	jobID, err := api.engine.DeleteAllDocumentsAsync(indexName)
	if err != nil {
		status, _ := classifyError(err)
		if status != http.StatusInternalServerError {
			SendEngineError(c, "delete all documents", err)
			return
		}
		SendJobExecutionError(c, "delete all documents", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": fmt.Sprintf("Document deletion started for index '%s'", indexName),
		"job_id":  jobID,
	})
}

// DocumentListRequest is the query string of a document listing.
type DocumentListRequest struct {
	Offset int `form:"offset" json:"offset"`
	Limit  int `form:"limit" json:"limit"`
}

// GetDocumentsHandler lists documents in insertion order, limit at a time.
func (api *API) GetDocumentsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}

	var req DocumentListRequest
	if result := ValidateQueryBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	offset, limit, result := ValidateListWindow(req.Offset, req.Limit)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	documents, total := indexAccessor.ListDocuments(offset, limit)
	c.JSON(http.StatusOK, gin.H{
		"documents": documents,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

// GetDocumentHandler retrieves a specific document by ID
func (api *API) GetDocumentHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	documentID := c.Param("documentId")

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}

	document, err := indexAccessor.GetDocument(documentID)
	if err != nil {
		SendEngineError(c, "get document", err)
		return
	}
	c.JSON(http.StatusOK, document)
}

// DeleteDocumentHandler deletes a specific document by ID and persists the index.
func (api *API) DeleteDocumentHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	documentID := c.Param("documentId")

	if result := ValidateDocumentID(documentID); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}
	if err := indexAccessor.DeleteDocument(c.Request.Context(), documentID); err != nil {
		SendEngineError(c, "delete document", err)
		return
	}
	if err := api.engine.PersistIndexData(indexName); err != nil {
		SendEngineError(c, "persist index", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document '" + documentID + "' deleted from index '" + indexName + "'"})
}
