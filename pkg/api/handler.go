// Package api exposes the injury store over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/injurystore/pkg/health"
	"github.com/nimburion/injurystore/pkg/injury"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

// Handler serves the injury collection endpoints.
type Handler struct {
	store  *injury.Store
	checks *health.Registry
	log    logger.Logger
}

// NewHandler creates a Handler. checks may be nil, in which case /healthz
// always reports healthy.
func NewHandler(store *injury.Store, checks *health.Registry, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if checks == nil {
		checks = health.NewRegistry()
	}
	return &Handler{store: store, checks: checks, log: log}
}

// Register mounts the routes on r. guards run before every /injuries route.
func (h *Handler) Register(r gin.IRouter, guards ...gin.HandlerFunc) {
	g := r.Group("/injuries", guards...)
	g.GET("", h.list)
	g.PUT("", h.save)
	g.POST("", h.add)
	g.DELETE("", h.clear)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	r.GET("/healthz", h.healthz)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.GetInjuries(c.Request.Context()))
}

func (h *Handler) save(c *gin.Context) {
	var injuries []injury.Injury
	if !bindJSON(c, &injuries) {
		return
	}
	if err := h.store.SaveInjuries(c.Request.Context(), injuries); err != nil {
		persistenceFailure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) add(c *gin.Context) {
	record, ok := bindRecord(c)
	if !ok {
		return
	}
	injuries, err := h.store.AddInjury(c.Request.Context(), record)
	if err != nil {
		persistenceFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, injuries)
}

func (h *Handler) update(c *gin.Context) {
	record, ok := bindRecord(c)
	if !ok {
		return
	}
	if _, ok := record[injury.IDField]; !ok {
		record[injury.IDField] = pathID(c)
	}
	injuries, err := h.store.UpdateInjury(c.Request.Context(), record)
	if err != nil {
		persistenceFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, injuries)
}

func (h *Handler) delete(c *gin.Context) {
	injuries, err := h.store.DeleteInjury(c.Request.Context(), pathID(c))
	if err != nil {
		persistenceFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, injuries)
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.store.ClearInjuries(c.Request.Context()); err != nil {
		persistenceFailure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// healthz answers 503 only when a check is unhealthy; degraded is still 200.
func (h *Handler) healthz(c *gin.Context) {
	result := h.checks.Check(c.Request.Context())
	if result.Status == health.StatusUnhealthy {
		h.log.WithContext(c.Request.Context()).Warn("health check failed", "checks", result.Checks)
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// pathID reads :id, as a number when it looks like one unless ?string_id=true.
func pathID(c *gin.Context) any {
	forceString, _ := strconv.ParseBool(c.Query("string_id"))
	return injury.ParseID(c.Param("id"), forceString)
}

func bindRecord(c *gin.Context) (injury.Injury, bool) {
	var record injury.Injury
	if !bindJSON(c, &record) {
		return nil, false
	}
	if record == nil {
		writeError(c, http.StatusBadRequest, "invalid_json", "expected a JSON object")
		return nil, false
	}
	return record, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
			return false
		}
		writeError(c, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func persistenceFailure(c *gin.Context, err error) {
	var perr *injury.PersistenceError
	if errors.As(err, &perr) {
		writeError(c, http.StatusInternalServerError, "persistence_error", perr.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, "internal_server_error", err.Error())
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      code,
		"message":    message,
		"request_id": c.GetString(requestIDKey),
	})
}
