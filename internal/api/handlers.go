package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/magpie/internal/serp"
)

// Searcher runs one query end to end. *runner.Runner is the production
// implementation.
type Searcher interface {
	Search(ctx context.Context, query string, maxPages, concurrency int) (*serp.QueryResult, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(searcher Searcher) *Handler {
	return &Handler{searcher: searcher}
}

// PostSearch handles POST /api/search: fetch, paginate and deduplicate one
// query, returning the aggregated result document.
func (h *Handler) PostSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	if req.Query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	result, err := h.searcher.Search(c.Request.Context(), req.Query, req.MaxPages, req.Concurrency)
	if err != nil {
		var paramErr *serp.ParameterError
		var queryErr *serp.QueryError
		switch {
		case errors.As(err, &paramErr):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: paramErr.Error()})
		case errors.As(err, &queryErr):
			slog.Error("search failed upstream", "query", req.Query, "error", err)
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: queryErr.Error()})
		default:
			slog.Error("search failed", "query", req.Query, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
