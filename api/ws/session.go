package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one operator's control connection to one encounter.
type Session struct {
	OperatorID  int64
	EncounterID string

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	closeOnce sync.Once
	logger    *zap.Logger
}

// NewSession creates a Session and starts its write goroutine.
func NewSession(operatorID int64, encounterID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		OperatorID:  operatorID,
		EncounterID: encounterID,
		Conn:        conn,
		SendChan:    make(chan []byte, sendChanBuf),
		Done:        make(chan struct{}),
		logger:      logger,
	}
	go s.writePump()
	return s
}

// writePump drains SendChan into the connection and pings on an interval so
// dead peers are noticed by the read deadline.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("operator_id", s.OperatorID),
					zap.String("encounter_id", s.EncounterID),
					zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and queues it without blocking. Packets are dropped when
// the queue is full or the session is closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		s.logger.Warn("ws encode failed", zap.String("type", pkt.Type), zap.Error(err))
		return
	}
	s.SendRaw(data)
}

// SendRaw queues already encoded bytes without blocking.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.Int64("operator_id", s.OperatorID),
			zap.String("encounter_id", s.EncounterID))
	}
}

// Reply sends payload as a packet of the given type, echoing seq so clients
// can match answers to requests.
func (s *Session) Reply(seq uint64, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("ws encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	s.Send(&Packet{Seq: seq, Type: msgType, Payload: raw})
}

// Close signals the writePump to shut down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetReadDeadline pushes the read deadline forward.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
