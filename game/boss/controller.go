package boss

import (
	"math"
	"math/rand"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"
)

const minAimDistanceSq = 0.01

// Deps are the collaborators of a Controller. Every field is optional; a
// missing collaborator degrades its calls to no-ops.
type Deps struct {
	Body        Body
	Player      PlayerInfo
	Navigator   Navigator
	Animation   AnimationSink
	Projectiles ProjectileSpawner
	Shockwaves  ShockwaveSpawner
	Stage       StageProgression
	Rand        Rand
	Emit        func(Event)
	Logger      *zap.Logger
}

// Controller is the boss state machine. It is not safe for concurrent use:
// the host must serialise Tick and the HealthListener callbacks.
type Controller struct {
	tuning   Tuning
	agent    *Agent
	move     *Movement
	attacks  *AttackScheduler
	catalog  *Catalog
	phases   PhaseEvaluator
	defense  DefenseTrigger
	selector *selector

	player      PlayerInfo
	anim        AnimationSink
	projectiles ProjectileSpawner
	shockwaves  ShockwaveSpawner
	stage       StageProgression
	rng         Rand
	emit        func(Event)
	logger      *zap.Logger

	state         StateID
	now           float64
	stageAdvanced bool
}

var _ HealthListener = (*Controller)(nil)

// NewController builds a controller in the "not started" state; call Start to
// enter Idle.
func NewController(t Tuning, deps Deps) *Controller {
	c := &Controller{
		tuning:      t,
		agent:       newAgent(),
		move:        NewMovement(deps.Body, deps.Navigator, t.TurnRate),
		catalog:     NewCatalog(t),
		phases:      NewPhaseEvaluator(t),
		defense:     NewDefenseTrigger(t),
		selector:    newSelector(t),
		player:      deps.Player,
		anim:        deps.Animation,
		projectiles: deps.Projectiles,
		shockwaves:  deps.Shockwaves,
		stage:       deps.Stage,
		rng:         deps.Rand,
		emit:        deps.Emit,
		logger:      deps.Logger,
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(1))
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.attacks = newAttackScheduler(c.agent, c.move, c)
	return c
}

// Start enters Idle. Calling it again has no effect.
func (c *Controller) Start() {
	if c.state != 0 {
		return
	}
	c.state = StateIdle
	c.emitEvent(EventStateChanged{At: c.now, To: StateIdle})
	c.enter(StateIdle)
}

// Tick advances the simulation by dt seconds: cooldown, attack and state
// logic, presentation, then phase re-evaluation.
func (c *Controller) Tick(dt float64) {
	if c.state == 0 {
		return
	}
	if dt < 0 {
		dt = 0
	}
	c.now += dt
	c.move.setFrameDelta(dt)

	if c.state == StateDead {
		c.present()
		return
	}

	if !c.agent.Attacking {
		c.agent.AttackCooldown = math.Max(0, c.agent.AttackCooldown-dt)
	}

	c.attacks.Advance(dt)
	c.tickState()
	c.present()

	// Defensive re-evaluates from its own tick once the brace has finished.
	if c.state != StateDead && c.state != StateDefensive {
		c.reevaluatePhase()
	}
}

// OnInitialize sets max and current health.
func (c *Controller) OnInitialize(maxHealth int) {
	if c.state == StateDead {
		return
	}
	c.agent.MaxHealth = maxHealth
	c.agent.CurrentHealth = maxHealth
	if maxHealth < 0 {
		c.agent.CurrentHealth = 0
	}
}

// OnHealthChanged records the new health and may force the Defensive state.
// A hit always counts as noticing the player.
func (c *Controller) OnHealthChanged(damage, newHealth int) {
	if c.state == StateDead {
		return
	}
	c.agent.setHealth(newHealth)
	c.agent.SpottedPlayer = true
	c.emitEvent(EventHealthChanged{At: c.now, Damage: damage, Health: c.agent.CurrentHealth, Max: c.agent.MaxHealth})

	// Lethal hits are followed by OnDeath.
	if c.state == 0 || damage <= 0 || c.agent.CurrentHealth <= 0 {
		return
	}
	dist := c.distanceToPlayer()
	if !c.defense.ShouldDefend(c.now, c.agent.LastDefenseAt, damage, c.agent.MaxHealth, dist, c.state) {
		return
	}
	c.agent.LastDefenseAt = c.now
	big := c.defense.BigHit(damage, c.agent.MaxHealth)
	c.logger.Info("boss defensive interrupt",
		zap.Int("damage", damage),
		zap.Bool("big_hit", big),
		zap.Float64("distance", dist),
		zap.Stringer("from", c.state))
	c.emitEvent(EventDefenseTriggered{At: c.now, Damage: damage, Health: c.agent.CurrentHealth, BigHit: big, Distance: dist})
	c.transition(StateDefensive)
}

// OnDeath moves to Dead and advances the stage. Repeated calls are ignored.
func (c *Controller) OnDeath() {
	if c.state == StateDead {
		return
	}
	c.agent.CurrentHealth = 0
	c.transition(StateDead)
	c.emitEvent(EventDied{At: c.now})
	c.logger.Info("boss defeated", zap.Float64("at", c.now))
	if c.stage != nil && !c.stageAdvanced {
		c.stageAdvanced = true
		c.stage.AdvanceStage()
	}
}

// State returns the active state.
func (c *Controller) State() StateID { return c.state }

// Now returns the simulation clock in seconds.
func (c *Controller) Now() float64 { return c.now }

// Tuning returns the balance the controller was built with.
func (c *Controller) Tuning() Tuning { return c.tuning }

// Agent returns a copy of the combat state.
func (c *Controller) Agent() Agent { return *c.agent }

// Snapshot is a read-only view of the controller for hosts and APIs.
type Snapshot struct {
	State            StateID    `json:"state"`
	Health           int        `json:"health"`
	MaxHealth        int        `json:"max_health"`
	NormalizedHealth float64    `json:"normalized_health"`
	SpottedPlayer    bool       `json:"spotted_player"`
	Attacking        bool       `json:"attacking"`
	Attack           AttackKind `json:"attack,omitempty"`
	AttackCooldown   float64    `json:"attack_cooldown"`
	LastDefenseAt    float64    `json:"last_defense_at"`
	Position         cp.Vector  `json:"position"`
	Facing           float64    `json:"facing"`
	Time             float64    `json:"time"`
}

// Snapshot captures the current state.
func (c *Controller) Snapshot() Snapshot {
	kind, _ := c.attacks.InFlight()
	return Snapshot{
		State:            c.state,
		Health:           c.agent.CurrentHealth,
		MaxHealth:        c.agent.MaxHealth,
		NormalizedHealth: c.agent.NormalizedHealth(),
		SpottedPlayer:    c.agent.SpottedPlayer,
		Attacking:        c.agent.Attacking,
		Attack:           kind,
		AttackCooldown:   c.agent.AttackCooldown,
		LastDefenseAt:    c.agent.LastDefenseAt,
		Position:         c.move.Position(),
		Facing:           c.move.Facing(),
		Time:             c.now,
	}
}

// ---- transitions ----

// transition cancels any attack, resets readiness, then runs exit and enter
// hooks. Same-state and post-death transitions are ignored.
func (c *Controller) transition(to StateID) bool {
	if to == c.state || c.state == StateDead {
		return false
	}
	from := c.state
	c.attacks.Cancel()
	c.agent.Attacking = false
	c.agent.AttackCooldown = 0

	c.exit(from)
	c.state = to
	c.logger.Debug("boss state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Float64("health", c.agent.NormalizedHealth()))
	c.emitEvent(EventStateChanged{At: c.now, From: from, To: to})
	c.enter(to)
	return true
}

func (c *Controller) enter(s StateID) {
	t := c.tuning
	switch s {
	case StateIdle, StateDead:
		c.move.Stop()
	case StatePhase1:
		c.move.SetSpeed(t.Phase1Speed)
		c.agent.AttackCooldown = t.EnterPrime
	case StatePhase2:
		c.move.SetSpeed(t.Phase2Speed)
		c.agent.AttackCooldown = t.EnterPrime
	case StatePhase3:
		c.move.SetSpeed(t.Phase3Speed * t.Phase3SpeedFactor)
		c.agent.AttackCooldown = t.Phase3Prime
	case StateDefensive:
		c.move.Stop()
		c.attacks.Begin(c.catalog.Get(AttackDefensiveBrace), t.Phase2Cooldown)
	}
}

func (c *Controller) exit(s StateID) {
	switch s {
	case StatePhase1, StatePhase2, StatePhase3, StateDefensive:
		c.move.Stop()
	}
}

func (c *Controller) reevaluatePhase() {
	if !c.agent.SpottedPlayer || c.state == StateDead {
		return
	}
	current, _ := phaseOf(c.state)
	if want, changed := c.phases.Next(c.agent.NormalizedHealth(), current); changed {
		c.transition(want.State())
	}
}

// ---- per-state ticks ----

func (c *Controller) tickState() {
	switch c.state {
	case StateIdle:
		c.tickIdle()
	case StatePhase1, StatePhase2, StatePhase3:
		p, _ := phaseOf(c.state)
		c.tickPhase(p)
	case StateDefensive:
		if !c.agent.Attacking {
			c.reevaluatePhase()
		}
	}
}

func (c *Controller) tickIdle() {
	if !c.playerPresent() {
		return
	}
	c.faceTarget()
	if c.distanceToPlayer() <= c.tuning.AcknowledgeRange {
		c.agent.SpottedPlayer = true
	}
}

func (c *Controller) tickPhase(p Phase) {
	if !c.playerPresent() || c.agent.Attacking {
		return
	}
	target := c.player.Position()
	dist := c.distanceToPlayer()
	if dist > c.tuning.chaseRadius(p) {
		c.move.MoveToward(target)
	} else {
		c.move.Stop()
	}
	c.move.FaceToward(target)

	if c.agent.AttackCooldown > 0 {
		return
	}
	kind, ok := c.selector.choose(p, dist, c.rng)
	if !ok {
		c.agent.AttackCooldown = c.tuning.RetryDelay
		return
	}
	c.attacks.Begin(c.catalog.Get(kind), c.tuning.attackCooldown(p))
}

func (c *Controller) present() {
	if c.anim == nil {
		return
	}
	dist := 0.0
	if c.playerPresent() {
		dist = c.distanceToPlayer()
	}
	c.anim.SetFloat(ParamDistanceToPlayer, dist)
	c.anim.SetFloat(ParamMoveSpeed, c.move.Speed())
	c.anim.SetBool(ParamPlayerDetected, c.agent.SpottedPlayer)
	c.anim.SetBool(ParamGrounded, c.agent.Grounded)
	c.anim.SetBool(ParamAttacking, c.agent.Attacking)
}

// ---- effects used by attack steps ----

func (c *Controller) playerPresent() bool {
	return c.player != nil && c.player.Present()
}

func (c *Controller) distanceToPlayer() float64 {
	if !c.playerPresent() {
		return math.Inf(1)
	}
	return c.move.Position().Distance(c.player.Position())
}

func (c *Controller) faceTarget() {
	if c.playerPresent() {
		c.move.FaceToward(c.player.Position())
	}
}

func (c *Controller) chaseTarget() {
	if c.playerPresent() {
		c.move.MoveToward(c.player.Position())
	}
}

func (c *Controller) trigger(cue Cue) {
	if c.anim != nil {
		c.anim.Trigger(cue)
	}
}

func (c *Controller) hasProjectiles() bool {
	return c.projectiles != nil
}

func (c *Controller) muzzle() cp.Vector {
	return c.move.Position().Add(c.move.Forward().Mult(c.tuning.MuzzleOffset))
}

// aimYaw is the yaw from the muzzle to the player, or the current facing when
// the player is absent or on top of the muzzle.
func (c *Controller) aimYaw() float64 {
	if !c.playerPresent() {
		return c.move.Facing()
	}
	dir := c.player.Position().Sub(c.muzzle())
	if dir.LengthSq() < minAimDistanceSq {
		return c.move.Facing()
	}
	return dir.ToAngle()
}

func (c *Controller) fireAtTarget(speed float64) {
	if c.projectiles == nil {
		return
	}
	c.fireAlong(c.aimYaw(), speed)
}

func (c *Controller) fireAlong(yaw, speed float64) {
	if c.projectiles == nil {
		return
	}
	c.projectiles.Spawn(c.muzzle(), yaw, cp.ForAngle(yaw).Mult(speed))
}

func (c *Controller) spawnShockwave() {
	if c.shockwaves == nil {
		return
	}
	at := c.move.Position().Add(c.move.Forward().Mult(c.tuning.ShockwaveOffset))
	c.shockwaves.SpawnShockwave(at, c.move.Facing())
}

func (c *Controller) emitEvent(e Event) {
	if c.emit != nil {
		c.emit(e)
	}
}
