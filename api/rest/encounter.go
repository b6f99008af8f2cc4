package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/arena"
	"github.com/kasuganosora/bossarena/journal"
	mw "github.com/kasuganosora/bossarena/middleware"
	"github.com/kasuganosora/bossarena/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 500
)

// EncounterHandler exposes the arena manager to operators. An operator only
// sees the encounters they created.
type EncounterHandler struct {
	mgr     *arena.Manager
	journal *journal.Service
	db      *gorm.DB
	logger  *zap.Logger
}

// NewEncounterHandler creates an EncounterHandler. j and db may be nil, which
// disables the journal endpoint for encounters that are no longer live.
func NewEncounterHandler(mgr *arena.Manager, j *journal.Service, db *gorm.DB, logger *zap.Logger) *EncounterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EncounterHandler{mgr: mgr, journal: j, db: db, logger: logger}
}

type createEncounterRequest struct {
	Layout       string     `json:"layout"`
	Seed         *int64     `json:"seed"`
	MaxHealth    int        `json:"max_health" binding:"omitempty,min=1,max=1000000"`
	BossSpawn    *cp.Vector `json:"boss_spawn"`
	PlayerSpawn  *cp.Vector `json:"player_spawn"`
	PlayerAbsent bool       `json:"player_absent"`
}

type amountRequest struct {
	Amount int `json:"amount" binding:"required,min=1"`
}

type playerRequest struct {
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Present *bool    `json:"present"`
}

// Create handles POST /api/encounters.
func (h *EncounterHandler) Create(c *gin.Context) {
	var req createEncounterRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	enc, err := h.mgr.Create(c.Request.Context(), arena.CreateRequest{
		Layout:       req.Layout,
		Seed:         req.Seed,
		MaxHealth:    req.MaxHealth,
		BossSpawn:    req.BossSpawn,
		PlayerSpawn:  req.PlayerSpawn,
		PlayerAbsent: req.PlayerAbsent,
		OperatorID:   mw.GetOperatorID(c),
	})
	if err != nil {
		writeArenaError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enc.Snapshot())
}

// List handles GET /api/encounters.
func (h *EncounterHandler) List(c *gin.Context) {
	opID := mw.GetOperatorID(c)
	out := make([]arena.Snapshot, 0)
	for _, enc := range h.mgr.List() {
		if enc.OperatorID == opID {
			out = append(out, enc.Snapshot())
		}
	}
	c.JSON(http.StatusOK, gin.H{"encounters": out, "layouts": h.mgr.LayoutNames()})
}

// Get handles GET /api/encounters/:id.
func (h *EncounterHandler) Get(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, enc.Snapshot())
}

// Delete handles DELETE /api/encounters/:id.
func (h *EncounterHandler) Delete(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.mgr.Remove(c.Request.Context(), enc.ID); err != nil {
		writeArenaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Damage handles POST /api/encounters/:id/damage.
func (h *EncounterHandler) Damage(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	applied, err := h.mgr.Damage(c.Request.Context(), enc.ID, req.Amount)
	if err != nil {
		writeArenaError(c, err)
		return
	}
	snap := enc.Snapshot()
	c.JSON(http.StatusOK, gin.H{"applied": applied, "health": snap.Boss.Health, "state": snap.Boss.State.String()})
}

// Heal handles POST /api/encounters/:id/heal.
func (h *EncounterHandler) Heal(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restored, err := h.mgr.Heal(c.Request.Context(), enc.ID, req.Amount)
	if err != nil {
		writeArenaError(c, err)
		return
	}
	snap := enc.Snapshot()
	c.JSON(http.StatusOK, gin.H{"restored": restored, "health": snap.Boss.Health, "state": snap.Boss.State.String()})
}

// Player handles POST /api/encounters/:id/player. Position and presence are
// both optional; x and y must be given together.
func (h *EncounterHandler) Player(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.X == nil) != (req.Y == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x and y must be set together"})
		return
	}
	if req.X == nil && req.Present == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if req.Present != nil {
		if err := h.mgr.SetPlayerPresent(enc.ID, *req.Present); err != nil {
			writeArenaError(c, err)
			return
		}
	}
	if req.X != nil {
		if err := h.mgr.MovePlayer(enc.ID, cp.Vector{X: *req.X, Y: *req.Y}); err != nil {
			writeArenaError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, enc.Snapshot().Player)
}

// Gizmos handles GET /api/encounters/:id/gizmos.
func (h *EncounterHandler) Gizmos(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, enc.Gizmos())
}

// Events handles GET /api/encounters/:id/events?limit=20, newest first.
func (h *EncounterHandler) Events(c *gin.Context) {
	enc, ok := h.owned(c)
	if !ok {
		return
	}
	events, err := h.mgr.RecentEvents(c.Request.Context(), enc.ID, queryLimit(c, defaultEventLimit, maxEventLimit))
	if err != nil {
		h.logger.Error("read recent events failed", zap.String("encounter_id", enc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Journal handles GET /api/encounters/:id/journal?limit=0, in simulation
// order. It also serves finished encounters that have a stored record.
func (h *EncounterHandler) Journal(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	id := c.Param("id")
	opID := mw.GetOperatorID(c)
	if enc, err := h.mgr.Get(id); err == nil {
		if enc.OperatorID != opID {
			writeArenaError(c, arena.ErrEncounterNotFound)
			return
		}
	} else if !h.recorded(id, opID) {
		writeArenaError(c, arena.ErrEncounterNotFound)
		return
	}

	limit := 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	events, err := h.journal.Events(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("read journal failed", zap.String("encounter_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EncounterHandler) recorded(id string, opID int64) bool {
	if h.db == nil {
		return false
	}
	var n int64
	h.db.Model(&model.EncounterRecord{}).
		Where("encounter_id = ? AND operator_id = ?", id, opID).
		Count(&n)
	return n > 0
}

// owned resolves :id to a live encounter of the calling operator, writing a
// 404 otherwise.
func (h *EncounterHandler) owned(c *gin.Context) (*arena.Encounter, bool) {
	enc, err := h.mgr.Get(c.Param("id"))
	if err == nil && enc.OperatorID != mw.GetOperatorID(c) {
		err = arena.ErrEncounterNotFound
	}
	if err != nil {
		writeArenaError(c, err)
		return nil, false
	}
	return enc, true
}

// writeArenaError maps arena errors onto HTTP statuses.
func writeArenaError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arena.ErrEncounterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arena.ErrUnknownLayout), errors.Is(err, arena.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, arena.ErrDamageVetoed):
		status = http.StatusForbidden
	case errors.Is(err, arena.ErrBossDefeated), errors.Is(err, arena.ErrEncounterClosed):
		status = http.StatusConflict
	case errors.Is(err, arena.ErrTooManyEncounters):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryLimit reads ?limit=, falling back to def when missing or out of range.
func queryLimit(c *gin.Context, def, upper int) int {
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= upper {
		return l
	}
	return def
}
