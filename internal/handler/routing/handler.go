package routing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mesh-api/internal/handler"
	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/internal/service/breaker"
	"github.com/jwalitptl/mesh-api/internal/service/replica"
	routingService "github.com/jwalitptl/mesh-api/internal/service/routing"
	"github.com/jwalitptl/mesh-api/pkg/logger"
)

// HealthSource supplies the latest health snapshot for the API payload.
type HealthSource interface {
	Snapshot() map[string]model.HealthStatus
}

type Handler struct {
	routing *routingService.Service
	health  HealthSource
	breaker *breaker.Service
	pool    *replica.Service
	logger  *logger.Logger
}

func NewHandler(routingSvc *routingService.Service, health HealthSource, breakerSvc *breaker.Service, pool *replica.Service, log *logger.Logger) *Handler {
	return &Handler{
		routing: routingSvc,
		health:  health,
		breaker: breakerSvc,
		pool:    pool,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	regions := r.Group("/regions")
	{
		regions.GET("", h.ListRegions)
		regions.GET("/health", h.RegionHealth)
		regions.GET("/optimal", h.OptimalRegion)
		regions.POST("/:id/failure", h.RecordFailure)
		regions.POST("/:id/success", h.RecordSuccess)
	}

	r.GET("/circuit-breakers", h.CircuitBreakers)

	replicas := r.Group("/replicas")
	{
		replicas.POST("/:region/acquire", h.AcquireReplica)
		replicas.POST("/release", h.ReleaseConnection)
		replicas.GET("/stats", h.PoolStatistics)
	}

	r.GET("/classify", h.ClassifyOperation)
}

func (h *Handler) ListRegions(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.routing.ActiveRegions()))
}

func (h *Handler) RegionHealth(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.health.Snapshot()))
}

// OptimalRegion returns the best usable region; ?country=XX applies geo
// affinity.
func (h *Handler) OptimalRegion(c *gin.Context) {
	region, err := h.routing.OptimalRegion(c.Query("country"))
	if err != nil {
		status, resp := handler.FromError(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(region))
}

func (h *Handler) RecordFailure(c *gin.Context) {
	regionID := c.Param("id")
	if _, err := h.routing.Region(regionID); err != nil {
		status, resp := handler.FromError(err)
		c.JSON(status, resp)
		return
	}
	h.breaker.RecordFailure(regionID)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"region": regionID}))
}

func (h *Handler) RecordSuccess(c *gin.Context) {
	regionID := c.Param("id")
	if _, err := h.routing.Region(regionID); err != nil {
		status, resp := handler.FromError(err)
		c.JSON(status, resp)
		return
	}
	h.breaker.RecordSuccess(regionID)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"region": regionID}))
}

func (h *Handler) CircuitBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.breaker.Status()))
}

func (h *Handler) AcquireReplica(c *gin.Context) {
	conn, err := h.pool.Acquire(c.Param("region"))
	if err != nil {
		status, resp := handler.FromError(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(conn))
}

type releaseRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	Success      *bool  `json:"success" binding:"required"`
}

func (h *Handler) ReleaseConnection(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("connection_id and success are required"))
		return
	}
	if err := h.pool.Release(req.ConnectionID, *req.Success); err != nil {
		status, resp := handler.FromError(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"connection_id": req.ConnectionID}))
}

func (h *Handler) PoolStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.pool.Statistics()))
}

// ClassifyOperation reports whether ?op=... is read-only or a write.
func (h *Handler) ClassifyOperation(c *gin.Context) {
	op := c.Query("op")
	if op == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("op query parameter is required"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"operation": op,
		"read_only": replica.IsReadOnlyOperation(op),
		"write":     replica.IsWriteOperation(op),
	}))
}
