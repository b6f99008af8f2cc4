package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

// newSession creates a Session without a connection or write goroutine.
func newSession(operatorID int64) *Session {
	return &Session{
		OperatorID:  operatorID,
		EncounterID: "enc",
		SendChan:    make(chan []byte, 256),
		Done:        make(chan struct{}),
		logger:      nop(),
	}
}

func makePacket(t *testing.T, seq uint64, msgType string, payload any) []byte {
	t.Helper()
	p, _ := json.Marshal(payload)
	b, err := json.Marshal(Packet{Seq: seq, Type: msgType, Payload: p})
	require.NoError(t, err)
	return b
}

// sent decodes the next queued packet, failing if none is queued.
func sent(t *testing.T, s *Session) Packet {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(raw, &pkt))
		return pkt
	default:
		t.Fatal("no packet queued")
		return Packet{}
	}
}

func TestRouter_On_Dispatch_Basic(t *testing.T) {
	r := NewRouter(nop())
	called := false
	r.On("ping", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		called = true
		return nil
	})

	r.Dispatch(newSession(1), makePacket(t, 1, "ping", nil))
	assert.True(t, called)
}

func TestRouter_Dispatch_MalformedJSON(t *testing.T) {
	r := NewRouter(nop())
	s := newSession(1)
	r.Dispatch(s, []byte("not json"))
	assert.Empty(t, s.SendChan)
}

func TestRouter_Dispatch_UnknownTypeReplies(t *testing.T) {
	r := NewRouter(nop())
	called := false
	r.On("known", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		called = true
		return nil
	})
	s := newSession(1)
	r.Dispatch(s, makePacket(t, 4, "unknown", nil))
	assert.False(t, called)

	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	assert.Equal(t, uint64(4), pkt.Seq)
	assert.Contains(t, string(pkt.Payload), "unknown message type")
}

func TestRouter_Dispatch_AntiReplay_RejectsOldSeq(t *testing.T) {
	r := NewRouter(nop())
	var callCount int
	r.On("msg", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		callCount++
		return nil
	})
	s := newSession(1)

	r.Dispatch(s, makePacket(t, 5, "msg", nil))
	assert.Equal(t, 1, callCount)

	r.Dispatch(s, makePacket(t, 5, "msg", nil))
	assert.Equal(t, 1, callCount)

	r.Dispatch(s, makePacket(t, 3, "msg", nil))
	assert.Equal(t, 1, callCount)
}

func TestRouter_Dispatch_AntiReplay_AcceptsNewSeq(t *testing.T) {
	r := NewRouter(nop())
	var seen []uint64
	r.On("msg", func(_ context.Context, _ *Session, seq uint64, _ json.RawMessage) error {
		seen = append(seen, seq)
		return nil
	})
	s := newSession(1)

	r.Dispatch(s, makePacket(t, 10, "msg", nil))
	r.Dispatch(s, makePacket(t, 11, "msg", nil))
	r.Dispatch(s, makePacket(t, 100, "msg", nil))
	assert.Equal(t, []uint64{10, 11, 100}, seen)
	assert.Equal(t, uint64(100), s.LastSeq)
}

func TestRouter_Dispatch_SeqZero_SkipsAntiReplay(t *testing.T) {
	r := NewRouter(nop())
	var callCount int
	r.On("msg", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		callCount++
		return nil
	})
	s := newSession(1)
	s.LastSeq = 100

	r.Dispatch(s, makePacket(t, 0, "msg", nil))
	r.Dispatch(s, makePacket(t, 0, "msg", nil))
	assert.Equal(t, 2, callCount)
	assert.Equal(t, uint64(100), s.LastSeq)
}

func TestRouter_Dispatch_PayloadPassed(t *testing.T) {
	r := NewRouter(nop())
	var got amountMsg
	r.On("damage", func(_ context.Context, _ *Session, _ uint64, raw json.RawMessage) error {
		return json.Unmarshal(raw, &got)
	})
	r.Dispatch(newSession(1), makePacket(t, 1, "damage", map[string]int{"amount": 7}))
	assert.Equal(t, 7, got.Amount)
}

func TestRouter_Dispatch_HandlerErrorReplies(t *testing.T) {
	r := NewRouter(nop())
	r.On("err", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		return assert.AnError
	})
	s := newSession(1)
	r.Dispatch(s, makePacket(t, 2, "err", nil))

	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	var body errorPayload
	require.NoError(t, json.Unmarshal(pkt.Payload, &body))
	assert.Equal(t, "err", body.Type)
	assert.Equal(t, assert.AnError.Error(), body.Error)
}

func TestRouter_TraceIDFromCtx_Present(t *testing.T) {
	r := NewRouter(nop())
	var traceID string
	r.On("trace", func(ctx context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		traceID = TraceIDFromCtx(ctx)
		return nil
	})
	s := newSession(1)
	r.Dispatch(s, makePacket(t, 1, "trace", nil))
	assert.NotEmpty(t, traceID)
	assert.Equal(t, s.TraceID, traceID)
}

func TestTraceIDFromCtx_Missing(t *testing.T) {
	assert.Equal(t, "", TraceIDFromCtx(context.Background()))
}

func TestRouter_ReplaceHandler(t *testing.T) {
	r := NewRouter(nop())
	var calls []string
	r.On("msg", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		calls = append(calls, "first")
		return nil
	})
	r.On("msg", func(_ context.Context, _ *Session, _ uint64, _ json.RawMessage) error {
		calls = append(calls, "second")
		return nil
	})
	r.Dispatch(newSession(1), makePacket(t, 1, "msg", nil))
	assert.Equal(t, []string{"second"}, calls)
}

func TestSession_SendAfterClose(t *testing.T) {
	s := newSession(1)
	s.Close()
	s.Close()
	s.Reply(1, "pong", nil)
	assert.True(t, s.IsClosed())
	assert.Empty(t, s.SendChan)
}
