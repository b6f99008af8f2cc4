package arena

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/model"
	"go.uber.org/zap"
)

var (
	ErrEncounterNotFound = errors.New("arena: encounter not found")
	ErrEncounterClosed   = errors.New("arena: encounter closed")
	ErrBossDefeated      = errors.New("arena: boss already defeated")
	ErrInvalidAmount     = errors.New("arena: amount must be positive")
	ErrOperationPanicked = errors.New("arena: encounter operation panicked")
)

const defaultMaxHealth = 100

// Sink receives the events of one encounter operation, in order, after the
// encounter lock is released. record is non-nil exactly once, when the
// encounter finishes.
type Sink func(e *Encounter, events []boss.Event, record *model.EncounterRecord)

// Options configures a new Encounter.
type Options struct {
	Layout           *Layout
	Tuning           boss.Tuning
	MaxHealth        int
	Seed             int64
	ProjectileTTL    float64
	ProjectileRadius float64
	BossSpawn        *cp.Vector
	PlayerSpawn      *cp.Vector
	PlayerAbsent     bool
	OperatorID       int64
	Sink             Sink
	Logger           *zap.Logger
}

// Stats are running counters for an encounter.
type Stats struct {
	Ticks       int `json:"ticks"`
	Attacks     int `json:"attacks"`
	Defenses    int `json:"defenses"`
	DamageTaken int `json:"damage_taken"`
	PlayerHits  int `json:"player_hits"`
	Shockwaves  int `json:"shockwaves"`
}

// Encounter is one boss fight: the controller and every collaborator it talks
// to. All mutation happens under mu, so ticks and health notifications never
// interleave.
type Encounter struct {
	ID         string
	Layout     string
	OperatorID int64
	Seed       int64
	CreatedAt  time.Time

	mu          sync.Mutex
	flushMu     sync.Mutex
	ctl         *boss.Controller
	body        *Body
	avatar      *Avatar
	health      *Health
	nav         *GridNavigator
	projectiles *ProjectileField
	shockwaves  *ShockwaveLog
	anim        *AnimationRecorder
	stage       *stageLatch
	stats       Stats
	pending     []boss.Event
	lastActive  time.Time
	closed      bool
	finished    bool

	sink   Sink
	logger *zap.Logger
}

// NewEncounter builds and starts an encounter. The boss begins Idle.
func NewEncounter(id string, opts Options) *Encounter {
	layout := opts.Layout
	if layout == nil {
		layout = DefaultLayout()
	}
	maxHealth := opts.MaxHealth
	if maxHealth <= 0 {
		maxHealth = defaultMaxHealth
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bossAt := layout.spawn(layout.BossSpawn)
	if opts.BossSpawn != nil {
		bossAt = *opts.BossSpawn
	}
	playerAt := layout.spawn(layout.PlayerSpawn)
	if opts.PlayerSpawn != nil {
		playerAt = *opts.PlayerSpawn
	}

	now := time.Now()
	e := &Encounter{
		ID:         id,
		Layout:     layout.Name,
		OperatorID: opts.OperatorID,
		Seed:       opts.Seed,
		CreatedAt:  now,
		lastActive: now,
		body:       &Body{pos: bossAt},
		avatar:     &Avatar{pos: playerAt, present: !opts.PlayerAbsent},
		anim:       NewAnimationRecorder(),
		stage:      &stageLatch{},
		sink:       opts.Sink,
		logger:     logger.With(zap.String("encounter_id", id)),
	}
	e.nav = NewGridNavigator(e.body, layout.Grid(), layout.CellSize)
	e.projectiles = NewProjectileField(e.avatar, opts.ProjectileTTL, opts.ProjectileRadius)
	e.shockwaves = NewShockwaveLog(func() float64 { return e.ctl.Now() })
	e.ctl = boss.NewController(opts.Tuning, boss.Deps{
		Body:        e.body,
		Player:      e.avatar,
		Navigator:   e.nav,
		Animation:   e.anim,
		Projectiles: e.projectiles,
		Shockwaves:  e.shockwaves,
		Stage:       e.stage,
		Rand:        rand.New(rand.NewSource(opts.Seed)),
		Emit:        e.collect,
		Logger:      e.logger,
	})
	e.health = NewHealth(maxHealth)

	e.do(func() error {
		e.health.Subscribe(e.ctl)
		e.ctl.Start()
		return nil
	})
	return e
}

func (e *Encounter) collect(ev boss.Event) {
	switch ev.(type) {
	case boss.EventAttackStarted:
		e.stats.Attacks++
	case boss.EventDefenseTriggered:
		e.stats.Defenses++
	}
	e.pending = append(e.pending, ev)
}

// do runs fn under the encounter lock, then hands the produced events to the
// sink. flushMu is taken before mu is released so sinks see operations in the
// order they were applied.
func (e *Encounter) do(fn func() error) error {
	e.mu.Lock()
	err := e.guard(fn)
	events := e.pending
	e.pending = nil
	var rec *model.EncounterRecord
	if !e.finished && e.stage.advanced > 0 {
		e.finished = true
		rec = e.recordLocked(model.OutcomeDefeated)
	}
	e.flushMu.Lock()
	e.mu.Unlock()
	defer e.flushMu.Unlock()

	if e.sink != nil && (len(events) > 0 || rec != nil) {
		e.sink(e, events, rec)
	}
	return err
}

// guard runs fn and turns a panic into ErrOperationPanicked, so do always
// releases mu.
func (e *Encounter) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("encounter operation panicked", zap.Any("recover", r))
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}
	}()
	return fn()
}

// Tick advances the fight by dt seconds: boss logic first, then movement and
// projectiles.
func (e *Encounter) Tick(dt float64) error {
	return e.do(func() error {
		if e.closed {
			return ErrEncounterClosed
		}
		e.ctl.Tick(dt)
		e.nav.Step(dt)
		e.stats.PlayerHits += e.projectiles.Step(dt)
		e.stats.Shockwaves = e.shockwaves.Count()
		e.stats.Ticks++
		return nil
	})
}

// ApplyDamage removes n health and returns the amount actually removed.
func (e *Encounter) ApplyDamage(n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	applied := 0
	err := e.do(func() error {
		if e.closed {
			return ErrEncounterClosed
		}
		if e.health.Dead() {
			return ErrBossDefeated
		}
		applied = e.health.Damage(n)
		e.stats.DamageTaken += applied
		e.lastActive = time.Now()
		return nil
	})
	return applied, err
}

// Heal restores up to n health and returns the amount restored.
func (e *Encounter) Heal(n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	restored := 0
	err := e.do(func() error {
		if e.closed {
			return ErrEncounterClosed
		}
		if e.health.Dead() {
			return ErrBossDefeated
		}
		restored = e.health.Heal(n)
		e.lastActive = time.Now()
		return nil
	})
	return restored, err
}

// MovePlayer places the player at p and marks them present.
func (e *Encounter) MovePlayer(p cp.Vector) error {
	return e.do(func() error {
		if e.closed {
			return ErrEncounterClosed
		}
		e.avatar.pos = p
		e.avatar.present = true
		e.lastActive = time.Now()
		return nil
	})
}

// SetPlayerPresent makes the player enter or leave the arena.
func (e *Encounter) SetPlayerPresent(present bool) error {
	return e.do(func() error {
		if e.closed {
			return ErrEncounterClosed
		}
		e.avatar.present = present
		e.lastActive = time.Now()
		return nil
	})
}

// Close stops the encounter. An unfinished fight is reported to the sink as
// abandoned. Closing twice is a no-op.
func (e *Encounter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	var rec *model.EncounterRecord
	if !e.finished {
		e.finished = true
		rec = e.recordLocked(model.OutcomeAbandoned)
	}
	e.flushMu.Lock()
	e.mu.Unlock()
	defer e.flushMu.Unlock()
	if e.sink != nil && rec != nil {
		e.sink(e, nil, rec)
	}
}

func (e *Encounter) recordLocked(outcome string) *model.EncounterRecord {
	return &model.EncounterRecord{
		EncounterID: e.ID,
		OperatorID:  e.OperatorID,
		Layout:      e.Layout,
		Seed:        e.Seed,
		Outcome:     outcome,
		FinalState:  e.ctl.State().String(),
		MaxHealth:   e.health.Max(),
		DamageTaken: e.stats.DamageTaken,
		KillTime:    e.ctl.Now(),
		Attacks:     e.stats.Attacks,
		Defenses:    e.stats.Defenses,
		PlayerHits:  e.stats.PlayerHits,
	}
}

// State returns the boss state.
func (e *Encounter) State() boss.StateID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctl.State()
}

// Defeated reports whether the boss has died.
func (e *Encounter) Defeated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage.advanced > 0
}

// Closed reports whether Close has been called.
func (e *Encounter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// LastActive is the last time a client acted on the encounter.
func (e *Encounter) LastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive
}

// PlayerSnapshot is the avatar as clients see it.
type PlayerSnapshot struct {
	Position cp.Vector `json:"position"`
	Present  bool      `json:"present"`
	Hits     int       `json:"hits"`
}

// Snapshot is a consistent view of an encounter.
type Snapshot struct {
	ID          string         `json:"id"`
	Layout      string         `json:"layout"`
	OperatorID  int64          `json:"operator_id"`
	Seed        int64          `json:"seed"`
	CreatedAt   time.Time      `json:"created_at"`
	Boss        boss.Snapshot  `json:"boss"`
	Player      PlayerSnapshot `json:"player"`
	Projectiles []cp.Vector    `json:"projectiles"`
	Shockwaves  []Shockwave    `json:"shockwaves"`
	Animation   AnimationState `json:"animation"`
	Stats       Stats          `json:"stats"`
	Defeated    bool           `json:"defeated"`
	Closed      bool           `json:"closed"`
}

func (e *Encounter) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ID:         e.ID,
		Layout:     e.Layout,
		OperatorID: e.OperatorID,
		Seed:       e.Seed,
		CreatedAt:  e.CreatedAt,
		Boss:       e.ctl.Snapshot(),
		Player: PlayerSnapshot{
			Position: e.avatar.pos,
			Present:  e.avatar.present,
			Hits:     e.avatar.hits,
		},
		Projectiles: e.projectiles.Positions(),
		Shockwaves:  e.shockwaves.All(),
		Animation:   e.anim.State(),
		Stats:       e.stats,
		Defeated:    e.stage.advanced > 0,
		Closed:      e.closed,
	}
}

// Gizmos is debug geometry: the configured radii around the boss and the
// path it is following.
type Gizmos struct {
	Center cp.Vector         `json:"center"`
	Facing float64           `json:"facing"`
	Ranges []boss.RangeGizmo `json:"ranges"`
	Path   []cp.Vector       `json:"path"`
}

func (e *Encounter) Gizmos() Gizmos {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Gizmos{
		Center: e.body.pos,
		Facing: e.body.yaw,
		Ranges: e.ctl.Tuning().Ranges(),
		Path:   e.nav.Remaining(),
	}
}
