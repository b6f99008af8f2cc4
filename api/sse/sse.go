package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/config"
	"github.com/kasuganosora/bossarena/game/arena"
	mw "github.com/kasuganosora/bossarena/middleware"
	"go.uber.org/zap"
)

const defaultKeepalive = 30 * time.Second

// Handler streams encounter events over server-sent events.
type Handler struct {
	mgr       *arena.Manager
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	c         cache.Cache
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(mgr *arena.Manager, pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mgr: mgr, pubsub: pubsub, c: c, sec: sec, logger: logger, keepalive: defaultKeepalive}
}

// SetKeepalive changes the comment interval that keeps proxies from closing
// idle streams.
func (h *Handler) SetKeepalive(d time.Duration) {
	if d > 0 {
		h.keepalive = d
	}
}

// ServeEncounter handles GET /sse/encounters/:id?token=<jwt>.
// The first event is the current snapshot; boss events follow as they are
// published. The stream ends when the client leaves or the pub/sub closes.
func (h *Handler) ServeEncounter(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.Authenticate(c.Request.Context(), h.sec, h.c, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	enc, err := h.mgr.Get(c.Param("id"))
	if err != nil || enc.OperatorID != claims.OperatorID {
		c.JSON(http.StatusNotFound, gin.H{"error": arena.ErrEncounterNotFound.Error()})
		return
	}

	ctx := c.Request.Context()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, arena.Channel(enc.ID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("encounter_id", enc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	snap, err := json.Marshal(enc.Snapshot())
	if err != nil {
		h.logger.Error("marshal snapshot failed", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "event: snapshot\ndata: %s\n\n", snap)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var env struct {
				Type string `json:"type"`
			}
			name := "boss"
			if json.Unmarshal([]byte(msg.Payload), &env) == nil && env.Type != "" {
				name = env.Type
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-ctx.Done():
			return
		}
	}
}
