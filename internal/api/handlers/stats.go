package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lyrix/internal/library"
	"lyrix/internal/session"
)

// StatsHandler reports library and session totals for the dashboard.
type StatsHandler struct {
	repo     *library.Repository
	registry *session.Registry
}

func NewStatsHandler(repo *library.Repository, reg *session.Registry) *StatsHandler {
	return &StatsHandler{repo: repo, registry: reg}
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":         stats,
		"open_sessions": h.registry.Len(),
	})
}
