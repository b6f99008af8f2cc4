package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/config"
	"github.com/kasuganosora/bossarena/game/arena"
	mw "github.com/kasuganosora/bossarena/middleware"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws/encounters/:id.
type Handler struct {
	mgr      *arena.Manager
	pubsub   cache.PubSub
	cache    cache.Cache
	sec      config.SecurityConfig
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(mgr *arena.Manager, pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, router *Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		mgr:    mgr,
		pubsub: pubsub,
		cache:  c,
		sec:    sec,
		router: router,
		logger: logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeEncounter handles GET /ws/encounters/:id?token=<jwt>.
// The server first sends a snapshot packet, then forwards every published
// boss event as an "event" packet while dispatching client commands.
func (h *Handler) ServeEncounter(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.Authenticate(c.Request.Context(), h.sec, h.cache, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	enc, err := h.mgr.Get(c.Param("id"))
	if err != nil || enc.OperatorID != claims.OperatorID {
		c.JSON(http.StatusNotFound, gin.H{"error": arena.ErrEncounterNotFound.Error()})
		return
	}

	// The request context is not reliable once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, arena.Channel(enc.ID))
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.String("encounter_id", enc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := NewSession(claims.OperatorID, enc.ID, conn, h.logger)
	sess.Reply(0, "snapshot", enc.Snapshot())
	go h.forward(sess, msgCh)

	h.logger.Info("encounter control connected",
		zap.Int64("operator_id", sess.OperatorID),
		zap.String("encounter_id", sess.EncounterID))
	h.readPump(sess)
}

// forward relays pub/sub events until the subscription or session ends.
func (h *Handler) forward(s *Session, msgCh <-chan *cache.Message) {
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.Close()
				return
			}
			s.Send(&Packet{Type: "event", Payload: json.RawMessage(msg.Payload)})
		case <-s.Done:
			return
		}
	}
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *Session) {
	defer func() {
		s.Close()
		h.logger.Info("encounter control disconnected",
			zap.Int64("operator_id", s.OperatorID),
			zap.String("encounter_id", s.EncounterID))
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("operator_id", s.OperatorID),
					zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}
