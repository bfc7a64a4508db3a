package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/rayzilt/aipscan-deploy/api/v1"
	"github.com/rayzilt/aipscan-deploy/internal/models"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

// StartConverge triggers an asynchronous convergence run for the requested
// tags. An accepted trigger clears the drift flag: the run reads the
// configuration file as it is on disk right now.
// (POST /converge)
func (h *Handler) StartConverge(c *gin.Context) {
	var req v1.ConvergeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	selection, err := models.ParseTags(req.Tags)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.convergeSrv.Converge(c.Request.Context(), selection); err != nil {
		if srvErrors.IsConvergenceInProgressError(err) {
			c.JSON(http.StatusConflict, v1.NewStatusWithError(h.convergeSrv.Status(), err))
			return
		}
		zap.S().Named("converge_handler").Errorw("failed to trigger convergence", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to trigger convergence"})
		return
	}

	if h.watcher != nil {
		h.watcher.MarkClean()
	}

	c.JSON(http.StatusAccepted, v1.NewStatus(h.convergeSrv.Status()))
}
