package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mesh-api/internal/service/routing"
)

type Handler struct {
	routing *routing.Service
}

func NewHandler(routingSvc *routing.Service) *Handler {
	return &Handler{routing: routingSvc}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck reports DOWN while no region can be routed to at all.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if _, err := h.routing.OptimalRegion(""); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "no region available",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
