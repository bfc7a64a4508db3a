package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	v1 "github.com/rayzilt/aipscan-deploy/api/v1"
	"github.com/rayzilt/aipscan-deploy/internal/services"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListRuns returns the run ledger with pagination and outcome filtering
// (GET /runs)
func (h *Handler) ListRuns(c *gin.Context) {
	// Parse pagination
	page := 1
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = v
	}
	pageSize := defaultPageSize
	if raw := c.Query("pageSize"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be a positive integer"})
			return
		}
		pageSize = v
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	// Build service params
	params := services.RunListParams{
		Limit:  uint64(pageSize),
		Offset: uint64((page - 1) * pageSize),
	}
	if raw := c.Query("failed"); raw != "" {
		failed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed must be a boolean"})
			return
		}
		params.Failed = &failed
	}

	result, err := h.runSrv.List(c.Request.Context(), params)
	if err != nil {
		zap.S().Named("run_handler").Errorw("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	// Calculate page count
	pageCount := (result.Total + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	// Map to API response
	apiRuns := make([]v1.RunSummary, 0, len(result.Runs))
	for _, run := range result.Runs {
		apiRuns = append(apiRuns, v1.NewRunSummaryFromModel(run))
	}

	c.JSON(http.StatusOK, v1.RunListResponse{
		Page:      page,
		PageCount: pageCount,
		Total:     result.Total,
		Runs:      apiRuns,
	})
}

// GetRun returns one run with its per-task results
// (GET /runs/{id})
func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id must be a UUID"})
		return
	}

	report, err := h.runSrv.Get(c.Request.Context(), id)
	if err != nil {
		if srvErrors.IsResourceNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		zap.S().Named("run_handler").Errorw("failed to load run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, v1.NewRunFromReport(report))
}
