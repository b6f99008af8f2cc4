package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/journal"
	"github.com/kasuganosora/bossarena/model"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"github.com/kasuganosora/bossarena/scheduler"
	"go.uber.org/zap"
)

var (
	ErrUnknownLayout     = errors.New("arena: unknown layout")
	ErrTooManyEncounters = errors.New("arena: too many encounters")
	ErrDamageVetoed      = errors.New("arena: damage vetoed")
)

// maxStep caps one simulation step so a stalled ticker does not teleport the
// boss through a whole attack.
const maxStep = 0.25

const reaperTicker = "arena:reaper"

// Settings are the arena knobs from config.
type Settings struct {
	Tuning           boss.Tuning
	DefaultLayout    string
	MaxEncounters    int
	DefaultMaxHealth int
	ProjectileTTL    float64
	ProjectileRadius float64
	RecentEvents     int
	TickInterval     time.Duration
	IdleTimeout      time.Duration
}

// Deps are the services a Manager fans events out to. All are optional.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Stage     *StageAdvancer
	Journal   *journal.Service
	Cache     cache.Cache
	PubSub    cache.PubSub
	Hooks     *hook.HookCenter
	Logger    *zap.Logger
}

// CreateRequest describes a new encounter. Zero values take the defaults.
type CreateRequest struct {
	Layout       string
	Seed         *int64
	MaxHealth    int
	BossSpawn    *cp.Vector
	PlayerSpawn  *cp.Vector
	PlayerAbsent bool
	OperatorID   int64
}

// Envelope is how an event is published and cached.
type Envelope struct {
	EncounterID string     `json:"encounter_id"`
	Type        string     `json:"type"`
	At          float64    `json:"at"`
	Data        boss.Event `json:"data"`
}

// EventsKey is the cache list holding an encounter's recent events, newest first.
func EventsKey(id string) string { return "encounter:" + id + ":events" }

// Channel is the pub/sub channel an encounter's events are published on.
func Channel(id string) string { return "encounter:" + id }

func tickerName(id string) string { return "encounter:" + id }

// Manager owns every live encounter and drives them from the scheduler.
type Manager struct {
	mu         sync.RWMutex
	encounters map[string]*Encounter
	reserved   int
	layouts    map[string]*Layout
	settings   Settings

	sched   *scheduler.Scheduler
	stage   *StageAdvancer
	journal *journal.Service
	cache   cache.Cache
	pubsub  cache.PubSub
	hooks   *hook.HookCenter
	logger  *zap.Logger
}

func NewManager(s Settings, layouts map[string]*Layout, d Deps) *Manager {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(layouts) == 0 {
		def := DefaultLayout()
		layouts = map[string]*Layout{def.Name: def}
	}
	return &Manager{
		encounters: make(map[string]*Encounter),
		layouts:    layouts,
		settings:   s,
		sched:      d.Scheduler,
		stage:      d.Stage,
		journal:    d.Journal,
		cache:      d.Cache,
		pubsub:     d.PubSub,
		hooks:      d.Hooks,
		logger:     logger,
	}
}

// Start registers the idle reaper. Encounter tickers are added by Create.
func (m *Manager) Start() {
	if m.sched == nil || m.settings.IdleTimeout <= 0 {
		return
	}
	interval := m.settings.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	m.sched.AddTicker(reaperTicker, interval, func(time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if n := m.ReapIdle(ctx, time.Now()); n > 0 {
			m.logger.Info("reaped idle encounters", zap.Int("count", n))
		}
	})
}

// Create builds an encounter, registers it and starts ticking it.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Encounter, error) {
	m.mu.Lock()
	s := m.settings
	name := req.Layout
	if name == "" {
		name = s.DefaultLayout
	}
	layout, ok := m.layouts[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	if s.MaxEncounters > 0 && len(m.encounters)+m.reserved >= s.MaxEncounters {
		m.mu.Unlock()
		return nil, ErrTooManyEncounters
	}
	// NewEncounter flushes through m.flush, which takes m.mu.
	m.reserved++
	m.mu.Unlock()

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	maxHealth := req.MaxHealth
	if maxHealth <= 0 {
		maxHealth = s.DefaultMaxHealth
	}

	id := uuid.NewString()
	enc := NewEncounter(id, Options{
		Layout:           layout,
		Tuning:           s.Tuning,
		MaxHealth:        maxHealth,
		Seed:             seed,
		ProjectileTTL:    s.ProjectileTTL,
		ProjectileRadius: s.ProjectileRadius,
		BossSpawn:        req.BossSpawn,
		PlayerSpawn:      req.PlayerSpawn,
		PlayerAbsent:     req.PlayerAbsent,
		OperatorID:       req.OperatorID,
		Sink:             m.flush,
		Logger:           m.logger,
	})
	m.mu.Lock()
	m.reserved--
	m.encounters[id] = enc
	m.mu.Unlock()

	if m.sched != nil {
		interval := s.TickInterval
		if interval <= 0 {
			interval = 50 * time.Millisecond
		}
		m.sched.AddTicker(tickerName(id), interval, func(dt time.Duration) {
			m.step(enc, dt.Seconds())
		})
	}

	m.trigger(ctx, hook.OnEncounterCreated, enc.Snapshot())
	m.logger.Info("encounter created",
		zap.String("encounter_id", id),
		zap.String("layout", layout.Name),
		zap.Int64("seed", seed),
		zap.Int("max_health", maxHealth))
	return enc, nil
}

// Get returns the encounter with the given id.
func (m *Manager) Get(id string) (*Encounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enc, ok := m.encounters[id]
	if !ok {
		return nil, ErrEncounterNotFound
	}
	return enc, nil
}

// List returns live encounters, oldest first.
func (m *Manager) List() []*Encounter {
	m.mu.RLock()
	out := make([]*Encounter, 0, len(m.encounters))
	for _, enc := range m.encounters {
		out = append(out, enc)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count is the number of live encounters.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.encounters)
}

// Remove stops and forgets an encounter. An unfinished fight is recorded as
// abandoned.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	enc, ok := m.encounters[id]
	if ok {
		delete(m.encounters, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrEncounterNotFound
	}
	if m.sched != nil {
		m.sched.Remove(tickerName(id))
	}
	enc.Close()
	m.trigger(ctx, hook.OnEncounterClosed, enc.Snapshot())
	m.logger.Info("encounter closed", zap.String("encounter_id", id))
	return nil
}

// Step advances one encounter by dt seconds. The scheduler calls it on every
// tick; tests and tools may call it directly.
func (m *Manager) Step(id string, dt float64) error {
	enc, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.step(enc, dt)
}

func (m *Manager) step(enc *Encounter, dt float64) error {
	if dt > maxStep {
		dt = maxStep
	}
	err := enc.Tick(dt)
	if errors.Is(err, ErrEncounterClosed) && m.sched != nil {
		m.sched.Remove(tickerName(enc.ID))
	}
	return err
}

// Damage applies n damage after the before_boss_damage hook, which may veto
// or rewrite the amount.
func (m *Manager) Damage(ctx context.Context, id string, n int) (int, error) {
	enc, err := m.Get(id)
	if err != nil {
		return 0, err
	}
	if m.hooks != nil {
		out, err := m.hooks.Trigger(ctx, hook.BeforeBossDamage, &hook.DamageHook{EncounterID: id, Amount: n})
		if errors.Is(err, hook.ErrInterrupt) {
			return 0, ErrDamageVetoed
		}
		if dh, ok := out.(*hook.DamageHook); ok {
			n = dh.Amount
		}
	}
	return enc.ApplyDamage(n)
}

// Heal restores up to n health on an encounter's boss.
func (m *Manager) Heal(_ context.Context, id string, n int) (int, error) {
	enc, err := m.Get(id)
	if err != nil {
		return 0, err
	}
	return enc.Heal(n)
}

// MovePlayer moves the player in an encounter.
func (m *Manager) MovePlayer(id string, p cp.Vector) error {
	enc, err := m.Get(id)
	if err != nil {
		return err
	}
	return enc.MovePlayer(p)
}

// SetPlayerPresent makes the player enter or leave an encounter.
func (m *Manager) SetPlayerPresent(id string, present bool) error {
	enc, err := m.Get(id)
	if err != nil {
		return err
	}
	return enc.SetPlayerPresent(present)
}

// ReapIdle removes encounters nobody has acted on within the idle timeout, and
// defeated encounters past the same window. It returns how many it removed.
func (m *Manager) ReapIdle(ctx context.Context, now time.Time) int {
	m.mu.RLock()
	timeout := m.settings.IdleTimeout
	m.mu.RUnlock()
	if timeout <= 0 {
		return 0
	}
	n := 0
	for _, enc := range m.List() {
		if now.Sub(enc.LastActive()) < timeout {
			continue
		}
		if err := m.Remove(ctx, enc.ID); err == nil {
			n++
		}
	}
	return n
}

// Tuning is the tuning new encounters start with.
func (m *Manager) Tuning() boss.Tuning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Tuning
}

// SetSettings replaces the arena settings. Running encounters keep the tuning
// they were created with.
func (m *Manager) SetSettings(s Settings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	m.logger.Info("arena settings reloaded",
		zap.Int("max_encounters", s.MaxEncounters),
		zap.Float64("melee_range", s.Tuning.MeleeRange))
}

// SetLayouts replaces the layout set. Running encounters keep their grid.
func (m *Manager) SetLayouts(layouts map[string]*Layout) {
	if len(layouts) == 0 {
		return
	}
	m.mu.Lock()
	m.layouts = layouts
	m.mu.Unlock()
	m.logger.Info("arena layouts reloaded", zap.Strings("layouts", m.LayoutNames()))
}

// LayoutNames lists the available layouts, sorted.
func (m *Manager) LayoutNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.layouts))
	for name := range m.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layout returns a layout by name.
func (m *Manager) Layout(name string) (*Layout, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layouts[name]
	return l, ok
}

// Stop removes every encounter, recording unfinished ones as abandoned.
func (m *Manager) Stop(ctx context.Context) {
	if m.sched != nil {
		m.sched.Remove(reaperTicker)
	}
	for _, enc := range m.List() {
		_ = m.Remove(ctx, enc.ID)
	}
}

// flush is every encounter's Sink: log, hooks, journal, cache and pub/sub,
// then persistence of a finished fight.
func (m *Manager) flush(enc *Encounter, events []boss.Event, rec *model.EncounterRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, ev := range events {
		m.publish(ctx, enc.ID, ev)
	}
	if m.cache != nil && len(events) > 0 {
		if n := m.recentEvents(); n > 0 {
			if err := m.cache.LTrim(ctx, EventsKey(enc.ID), 0, int64(n-1)); err != nil {
				m.logger.Warn("trim recent events failed", zap.String("encounter_id", enc.ID), zap.Error(err))
			}
		}
	}

	if rec != nil && m.stage != nil {
		if err := m.stage.Persist(ctx, rec); err != nil {
			m.logger.Error("persist encounter failed", zap.String("encounter_id", enc.ID), zap.Error(err))
		}
	}
}

func (m *Manager) recentEvents() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.RecentEvents
}

func (m *Manager) publish(ctx context.Context, id string, ev boss.Event) {
	m.logger.Debug("boss event",
		zap.String("encounter_id", id),
		zap.String("type", ev.EventType()),
		zap.Float64("at", ev.EventTime()),
		zap.Any("data", ev))

	if m.hooks != nil {
		payload := &hook.BossEvent{EncounterID: id, Event: ev}
		switch ev.(type) {
		case boss.EventStateChanged:
			m.trigger(ctx, hook.OnBossStateChanged, payload)
		case boss.EventAttackStarted:
			m.trigger(ctx, hook.OnBossAttack, payload)
		case boss.EventDefenseTriggered:
			m.trigger(ctx, hook.OnBossDefense, payload)
		}
		m.trigger(ctx, hook.OnBossEvent, payload)
	}

	if m.journal != nil {
		m.journal.Record(journal.Entry{EncounterID: id, Type: ev.EventType(), At: ev.EventTime(), Payload: ev})
	}

	if m.cache == nil && m.pubsub == nil {
		return
	}
	data, err := json.Marshal(Envelope{EncounterID: id, Type: ev.EventType(), At: ev.EventTime(), Data: ev})
	if err != nil {
		m.logger.Error("marshal boss event failed", zap.Error(err))
		return
	}
	if m.cache != nil {
		if err := m.cache.LPush(ctx, EventsKey(id), string(data)); err != nil {
			m.logger.Warn("cache boss event failed", zap.String("encounter_id", id), zap.Error(err))
		}
	}
	if m.pubsub != nil {
		if err := m.pubsub.Publish(ctx, Channel(id), string(data)); err != nil {
			m.logger.Warn("publish boss event failed", zap.String("encounter_id", id), zap.Error(err))
		}
	}
}

func (m *Manager) trigger(ctx context.Context, event string, data interface{}) {
	if m.hooks == nil {
		return
	}
	if _, err := m.hooks.Trigger(ctx, event, data); err != nil {
		m.logger.Debug("hook chain interrupted", zap.String("event", event), zap.Error(err))
	}
}

// RecentEvents returns up to n cached events for an encounter, newest first.
func (m *Manager) RecentEvents(ctx context.Context, id string, n int) ([]json.RawMessage, error) {
	if m.cache == nil || n <= 0 {
		return []json.RawMessage{}, nil
	}
	raw, err := m.cache.LRange(ctx, EventsKey(id), 0, int64(n-1))
	if err != nil {
		if cache.IsNotFound(err) {
			return []json.RawMessage{}, nil
		}
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}
