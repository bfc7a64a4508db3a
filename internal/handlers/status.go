package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/rayzilt/aipscan-deploy/api/v1"
)

// GetStatus returns the convergence state, the last run report and the
// configuration drift flag.
// (GET /status)
func (h *Handler) GetStatus(c *gin.Context) {
	status := v1.NewStatus(h.convergeSrv.Status())
	if h.watcher != nil {
		status.Drift = v1.NewDrift(h.watcher.Dirty())
	}
	c.JSON(http.StatusOK, status)
}
