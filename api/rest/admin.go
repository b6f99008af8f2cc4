package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bossarena/game/arena"
	"github.com/kasuganosora/bossarena/journal"
	"github.com/kasuganosora/bossarena/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	mgr     *arena.Manager
	sched   *scheduler.Scheduler
	journal *journal.Service
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler. j may be nil.
func NewAdminHandler(mgr *arena.Manager, sched *scheduler.Scheduler, j *journal.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{mgr: mgr, sched: sched, journal: j, logger: logger}
}

// Metrics returns server health metrics.
// GET /admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var dropped int64
	if h.journal != nil {
		dropped = h.journal.Dropped()
	}
	c.JSON(http.StatusOK, gin.H{
		"encounters":      h.mgr.Count(),
		"layouts":         h.mgr.LayoutNames(),
		"scheduler_tasks": h.sched.ListTickers(),
		"journal_dropped": dropped,
	})
}

// Tickers returns run statistics for every scheduler ticker.
// GET /admin/tickers
func (h *AdminHandler) Tickers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickers": h.sched.Tickers()})
}

// Tuning returns the tuning new encounters start with and its range gizmos.
// GET /admin/tuning
func (h *AdminHandler) Tuning(c *gin.Context) {
	t := h.mgr.Tuning()
	c.JSON(http.StatusOK, gin.H{"tuning": t, "ranges": t.Ranges()})
}

// Encounters returns every live encounter regardless of operator.
// GET /admin/encounters
func (h *AdminHandler) Encounters(c *gin.Context) {
	list := h.mgr.List()
	out := make([]arena.Snapshot, 0, len(list))
	for _, enc := range list {
		out = append(out, enc.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"encounters": out, "count": len(out)})
}

// Step advances an encounter by hand, for reproducing a fight frame by frame.
// POST /admin/encounters/:id/step
func (h *AdminHandler) Step(c *gin.Context) {
	var req struct {
		DT    float64 `json:"dt" binding:"required,gt=0"`
		Count int     `json:"count" binding:"omitempty,min=1,max=10000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	id := c.Param("id")
	for i := 0; i < req.Count; i++ {
		if err := h.mgr.Step(id, req.DT); err != nil {
			writeArenaError(c, err)
			return
		}
	}
	enc, err := h.mgr.Get(id)
	if err != nil {
		writeArenaError(c, err)
		return
	}
	c.JSON(http.StatusOK, enc.Snapshot())
}

// CloseEncounter removes any encounter, recording it as abandoned if unfinished.
// DELETE /admin/encounters/:id
func (h *AdminHandler) CloseEncounter(c *gin.Context) {
	id := c.Param("id")
	if err := h.mgr.Remove(c.Request.Context(), id); err != nil {
		writeArenaError(c, err)
		return
	}
	h.logger.Info("admin closed encounter", zap.String("encounter_id", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503, so the server cannot
// be deployed with them open by accident.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
