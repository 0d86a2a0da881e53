package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/services"
)

// SearchRequest is the JSON body of a search. Query is a string, null or
// absent; any other JSON type is rejected with INVALID_ARGUMENT by the engine.
type SearchRequest struct {
	Query             any                       `json:"query"`
	Offset            uint32                    `json:"offset"`
	NumWanted         *uint32                   `json:"num_wanted,omitempty"`
	Sort              []config.RankingCriterion `json:"sort,omitempty"`
	RetrievableFields []string                  `json:"retrievable_fields,omitempty"`
}

// MultiSearchRequest is the JSON body of a search across several indexes.
type MultiSearchRequest struct {
	Indexes []string `json:"indexes" binding:"required"`
	SearchRequest
}

// toServiceRequest applies the num_wanted default and limit.
func (api *API) toServiceRequest(req SearchRequest) (services.SearchRequest, *ValidationResult) {
	numWanted := api.searchCfg.DefaultNumWanted
	if req.NumWanted != nil {
		numWanted = *req.NumWanted
	}

	result := ValidateSearchWindow(numWanted, api.searchCfg.MaxNumWanted)
	result.merge(ValidateSortCriteria(req.Sort))

	return services.SearchRequest{
		Query:             req.Query,
		Offset:            req.Offset,
		NumWanted:         numWanted,
		Sort:              req.Sort,
		RetrievableFields: req.RetrievableFields,
	}, result
}

// SearchHandler handles search requests to an index.
// Request Body: SearchRequest
func (api *API) SearchHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	api.search(c, indexName, req)
}

// SearchGetHandler handles GET searches: q, offset, num_wanted, sort
// (comma-separated field:order pairs) and fields (comma-separated) are read
// from the query string. A missing q is a search without a query.
func (api *API) SearchGetHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	req, result := parseSearchQueryString(c)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	api.search(c, indexName, req)
}

func (api *API) search(c *gin.Context, indexName string, req SearchRequest) {
	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}

	searchReq, result := api.toServiceRequest(req)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	results, err := indexAccessor.Search(c.Request.Context(), searchReq)
	if err != nil {
		api.logSearchFailure(c, []string{indexName}, err)
		SendEngineError(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// MultiSearchHandler searches several indexes at once and merges their hits
// into one ranked window.
func (api *API) MultiSearchHandler(c *gin.Context) {
	var req MultiSearchRequest
	if result := ValidateJSONBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	searchReq, result := api.toServiceRequest(req.SearchRequest)
	for i, name := range req.Indexes {
		if nameResult := ValidateIndexName(name); nameResult.HasErrors() {
			result.AddError(fmt.Sprintf("indexes[%d]", i), nameResult.Errors[0].Message)
		}
	}
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	results, err := api.engine.MultiSearch(c.Request.Context(), services.MultiSearchRequest{
		Indexes:       req.Indexes,
		SearchRequest: searchReq,
	})
	if err != nil {
		api.logSearchFailure(c, req.Indexes, err)
		SendEngineError(c, "multi-search", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (api *API) logSearchFailure(c *gin.Context, indexes []string, err error) {
	if status, _ := classifyError(err); status != http.StatusInternalServerError {
		return
	}
	api.logger.Error("search_failed",
		slog.Any("indexes", indexes),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()))
}

func parseSearchQueryString(c *gin.Context) (SearchRequest, *ValidationResult) {
	result := &ValidationResult{Valid: true}
	var req SearchRequest

	if q, ok := c.GetQuery("q"); ok {
		req.Query = q
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			result.AddError("offset", "offset must be a non-negative 32-bit integer")
		}
		req.Offset = uint32(offset)
	}
	if raw := c.Query("num_wanted"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			result.AddError("num_wanted", "num_wanted must be a non-negative 32-bit integer")
		}
		numWanted := uint32(n)
		req.NumWanted = &numWanted
	}
	if raw := c.Query("sort"); raw != "" {
		req.Sort = ParseSortParam(raw)
	}
	if raw := c.Query("fields"); raw != "" {
		req.RetrievableFields = strings.Split(raw, ",")
	}
	return req, result
}

// ParseSortParam parses "field:order,field:order". A missing order means asc.
func ParseSortParam(raw string) []config.RankingCriterion {
	var criteria []config.RankingCriterion
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, order, _ := strings.Cut(part, ":")
		if order == "" {
			order = "asc"
		}
		criteria = append(criteria, config.RankingCriterion{Field: field, Order: order})
	}
	return criteria
}
