package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
// For before_* events it also vetoes the action.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type hookEntry struct {
	priority int
	seq      int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu    sync.RWMutex
	seq   int
	hooks map[string][]*hookEntry
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds fn for event. Lower priorities run first; equal priorities run
// in registration order. name is used for Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.seq++
	entries := append(hc.hooks[event], &hookEntry{priority: priority, seq: hc.seq, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	hc.hooks[event] = entries
}

func without(entries []*hookEntry, name string) []*hookEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	return kept
}

// Unregister removes all hooks with the given name for the given event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes every hook registered under name.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

// Has reports whether any handler is registered for event.
func (hc *HookCenter) Has(event string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.hooks[event]) > 0
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler. ErrInterrupt stops the chain and is
// returned; other handler errors are ignored.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err == nil {
			data = out
		}
	}
	return data, nil
}

// ---- Hook event names ----
//
// BeforeBossDamage receives a *DamageHook; handlers may change Amount or veto
// the hit with ErrInterrupt. The on_boss_* events receive a *BossEvent.
// AfterBossDefeated receives the persisted *model.EncounterRecord.

const (
	BeforeBossDamage   = "before_boss_damage"
	OnBossStateChanged = "on_boss_state_changed"
	OnBossAttack       = "on_boss_attack"
	OnBossDefense      = "on_boss_defense"
	OnBossEvent        = "on_boss_event"
	AfterBossDefeated  = "after_boss_defeated"
	OnEncounterCreated = "on_encounter_created"
	OnEncounterClosed  = "on_encounter_closed"
)

// DamageHook is the payload of BeforeBossDamage.
type DamageHook struct {
	EncounterID string
	Amount      int
}

// BossEvent is the payload of the on_boss_* events. Event is a boss.Event.
type BossEvent struct {
	EncounterID string
	Event       interface{}
}
