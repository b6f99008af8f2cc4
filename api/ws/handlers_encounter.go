package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/arena"
)

type amountMsg struct {
	Amount int `json:"amount"`
}

type moveMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type presenceMsg struct {
	Present bool `json:"present"`
}

type combatResult struct {
	Applied int    `json:"applied,omitempty"`
	Healed  int    `json:"restored,omitempty"`
	Health  int    `json:"health"`
	State   string `json:"state"`
}

var errBadPayload = errors.New("bad payload")

// RegisterEncounterHandlers wires the encounter control messages.
func RegisterEncounterHandlers(r *Router, mgr *arena.Manager) {
	r.On("ping", func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		s.Reply(seq, "pong", map[string]int64{"ts": time.Now().UnixMilli()})
		return nil
	})

	r.On("snapshot", func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		enc, err := mgr.Get(s.EncounterID)
		if err != nil {
			return err
		}
		s.Reply(seq, "snapshot", enc.Snapshot())
		return nil
	})

	r.On("gizmos", func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		enc, err := mgr.Get(s.EncounterID)
		if err != nil {
			return err
		}
		s.Reply(seq, "gizmos", enc.Gizmos())
		return nil
	})

	r.On("damage", func(ctx context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var m amountMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return errBadPayload
		}
		applied, err := mgr.Damage(ctx, s.EncounterID, m.Amount)
		if err != nil {
			return err
		}
		return replyCombat(mgr, s, seq, "damage_result", combatResult{Applied: applied})
	})

	r.On("heal", func(ctx context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var m amountMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return errBadPayload
		}
		restored, err := mgr.Heal(ctx, s.EncounterID, m.Amount)
		if err != nil {
			return err
		}
		return replyCombat(mgr, s, seq, "heal_result", combatResult{Healed: restored})
	})

	r.On("move", func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var m moveMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return errBadPayload
		}
		if err := mgr.MovePlayer(s.EncounterID, cp.Vector{X: m.X, Y: m.Y}); err != nil {
			return err
		}
		return replyPlayer(mgr, s, seq)
	})

	r.On("presence", func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var m presenceMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return errBadPayload
		}
		if err := mgr.SetPlayerPresent(s.EncounterID, m.Present); err != nil {
			return err
		}
		return replyPlayer(mgr, s, seq)
	})
}

func replyCombat(mgr *arena.Manager, s *Session, seq uint64, msgType string, res combatResult) error {
	enc, err := mgr.Get(s.EncounterID)
	if err != nil {
		return err
	}
	snap := enc.Snapshot()
	res.Health = snap.Boss.Health
	res.State = snap.Boss.State.String()
	s.Reply(seq, msgType, res)
	return nil
}

func replyPlayer(mgr *arena.Manager, s *Session, seq uint64) error {
	enc, err := mgr.Get(s.EncounterID)
	if err != nil {
		return err
	}
	s.Reply(seq, "player", enc.Snapshot().Player)
	return nil
}
