package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bossarena/game/arena"
	mw "github.com/kasuganosora/bossarena/middleware"
	"github.com/kasuganosora/bossarena/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	recordsPageSize    = 20
	recordsMaxPageSize = 100
	leaderboardTop     = 100
)

// RecordsHandler serves finished encounters and the boss leaderboard.
type RecordsHandler struct {
	db     *gorm.DB
	stage  *arena.StageAdvancer
	logger *zap.Logger
}

// NewRecordsHandler creates a RecordsHandler.
func NewRecordsHandler(db *gorm.DB, stage *arena.StageAdvancer, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsHandler{db: db, stage: stage, logger: logger}
}

// List returns the caller's encounter records, newest first.
// GET /api/records?page=1&size=20&outcome=defeated
func (h *RecordsHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(recordsPageSize)))
	if size < 1 || size > recordsMaxPageSize {
		size = recordsPageSize
	}

	q := h.db.Model(&model.EncounterRecord{}).Where("operator_id = ?", mw.GetOperatorID(c))
	if outcome := c.Query("outcome"); outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	var records []model.EncounterRecord
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": total, "page": page, "size": size})
}

// Get returns one of the caller's records by encounter ID.
// GET /api/records/:id
func (h *RecordsHandler) Get(c *gin.Context) {
	var rec model.EncounterRecord
	err := h.db.Where("encounter_id = ? AND operator_id = ?", c.Param("id"), mw.GetOperatorID(c)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Leaderboard returns the fastest kills.
// GET /api/leaderboard?limit=10
func (h *RecordsHandler) Leaderboard(c *gin.Context) {
	limit := queryLimit(c, 10, leaderboardTop)
	entries, err := h.stage.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("read leaderboard failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// Stage returns how many bosses have been defeated.
// GET /api/stage
func (h *RecordsHandler) Stage(c *gin.Context) {
	stage, err := h.stage.Stage(c.Request.Context())
	if err != nil {
		h.logger.Error("read boss stage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": stage})
}
