package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rayzilt/aipscan-deploy/internal/services"
)

type Handler struct {
	convergeSrv *services.ConvergeService
	runSrv      *services.RunService
	watcher     *services.Watcher
}

// New builds the API handler. watcher may be nil when drift watching is
// disabled; the status endpoint then reports no drift.
func New(convergeSrv *services.ConvergeService, runSrv *services.RunService, watcher *services.Watcher) *Handler {
	return &Handler{
		convergeSrv: convergeSrv,
		runSrv:      runSrv,
		watcher:     watcher,
	}
}

// Routes registers all handlers on the given group.
func (h *Handler) Routes(r *gin.RouterGroup) {
	r.GET("/status", h.GetStatus)
	r.POST("/converge", h.StartConverge)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
}
