package boss

import (
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_NotStartedIgnoresTicks(t *testing.T) {
	nav := &fakeNav{}
	c := NewController(DefaultTuning(), Deps{Navigator: nav, Player: &fakePlayer{present: true}})
	c.Tick(1)
	assert.Equal(t, StateID(0), c.State())
	assert.Zero(t, c.Now())

	c.Start()
	c.Start()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, nav.stopCalls, "idle enter runs once")
}

func TestController_IdleWithoutPlayerStaysIdle(t *testing.T) {
	r := newRig(DefaultTuning(), 5)
	r.player.present = false
	r.ctl.OnInitialize(100)
	for i := 0; i < 10; i++ {
		r.ctl.Tick(0.1)
	}
	assert.Equal(t, StateIdle, r.ctl.State())
	assert.False(t, r.ctl.Agent().SpottedPlayer)
	assert.Zero(t, r.nav.destCalls)
	assert.Equal(t, 0.0, r.anim.floats[ParamDistanceToPlayer])
}

func TestController_IdleAcknowledgeRadius(t *testing.T) {
	r := newRig(DefaultTuning(), 31)
	r.ctl.OnInitialize(100)
	r.ctl.Tick(0.1)
	assert.Equal(t, StateIdle, r.ctl.State())

	r.player.pos = cp.Vector{X: 29}
	r.ctl.Tick(0.1)
	assert.Equal(t, StatePhase1, r.ctl.State())
	assert.True(t, r.ctl.Agent().SpottedPlayer)
}

func TestController_DamageWakesIdleBoss(t *testing.T) {
	r := newRig(DefaultTuning(), 100)
	r.ctl.OnInitialize(100)
	r.ctl.OnHealthChanged(1, 99)
	assert.Equal(t, StateIdle, r.ctl.State(), "no transition outside the tick")
	r.ctl.Tick(0.1)
	assert.Equal(t, StatePhase1, r.ctl.State())
}

// Scenario: full health, player spotted -> Phase1.
func TestController_SpottedAtFullHealthIsPhase1(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)

	assert.Equal(t, DefaultTuning().Phase1Speed, r.nav.speed)
	assert.InDelta(t, DefaultTuning().EnterPrime, r.ctl.Agent().AttackCooldown, 1e-9)
	assert.Equal(t, 1, r.count("state_changed")-1, "idle then phase1")
}

// Scenario: health to 60% -> Phase2 on the next evaluation.
func TestController_HealthDropMovesToPhase2(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)

	for hp := 90; hp >= 60; hp -= 10 {
		r.ctl.OnHealthChanged(10, hp)
	}
	assert.Equal(t, StatePhase1, r.ctl.State())
	assert.Zero(t, r.count("defense_triggered"))

	r.ctl.Tick(0.02)
	assert.Equal(t, StatePhase2, r.ctl.State())
	assert.Equal(t, DefaultTuning().Phase2Speed, r.nav.speed)
}

func TestController_Phase3EnterBoostsSpeed(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	for hp := 90; hp >= 30; hp -= 10 {
		r.ctl.OnHealthChanged(10, hp)
	}
	r.ctl.Tick(0.02)
	require.Equal(t, StatePhase3, r.ctl.State())
	tu := DefaultTuning()
	assert.InDelta(t, tu.Phase3Speed*tu.Phase3SpeedFactor, r.nav.speed, 1e-9)
	assert.InDelta(t, tu.Phase3Prime, r.ctl.Agent().AttackCooldown, 1e-9)
}

func TestController_Phase1ChasesThenAttacks(t *testing.T) {
	r := newRig(DefaultTuning(), 10, 0.9)
	r.engage(t, 100)

	r.ctl.Tick(0.1)
	assert.Equal(t, 1, r.nav.destCalls, "chases while farther than melee")

	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Agent().Attacking })
	kind, _ := r.ctl.attacks.InFlight()
	assert.Equal(t, AttackShoot, kind)
	assert.Contains(t, r.anim.cues, CueShoot)

	// Finishing applies the phase cooldown.
	r.tickUntil(t, 0.1, 20, func() bool { return !r.ctl.Agent().Attacking })
	assert.InDelta(t, DefaultTuning().Phase1Cooldown, r.ctl.Agent().AttackCooldown, 0.11)
	assert.Len(t, r.shots.shots, 1)
}

func TestController_CooldownHoldsWhileAttacking(t *testing.T) {
	r := newRig(DefaultTuning(), 2, 0.9)
	r.engage(t, 100)
	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Agent().Attacking })

	r.ctl.agent.AttackCooldown = 0.3
	r.ctl.Tick(0.1)
	assert.Equal(t, 0.3, r.ctl.Agent().AttackCooldown)
}

func TestController_OutOfRangeRetries(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Agent().AttackCooldown == DefaultTuning().RetryDelay })
	assert.False(t, r.ctl.Agent().Attacking)
}

// Scenario: a big hit forces Defensive and aborts the in-flight attack.
func TestController_BigHitForcesDefensive(t *testing.T) {
	r := newRig(DefaultTuning(), 4.5)
	r.engage(t, 100)
	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Agent().Attacking })
	kind, _ := r.ctl.attacks.InFlight()
	require.Equal(t, AttackNormalSwing, kind)

	r.ctl.OnHealthChanged(25, 75)
	assert.Equal(t, StateDefensive, r.ctl.State())
	assert.Equal(t, 1, r.count("attack_cancelled"))
	assert.Equal(t, 1, r.count("defense_triggered"))
	assert.Zero(t, r.ctl.Agent().AttackCooldown, "cancelled swing cooldown never applies")
	assert.Equal(t, r.ctl.Now(), r.ctl.Agent().LastDefenseAt)

	kind, ok := r.ctl.attacks.InFlight()
	assert.True(t, ok)
	assert.Equal(t, AttackDefensiveBrace, kind)
}

// Scenario: a second big hit during the brace changes nothing.
func TestController_SecondBigHitDuringBraceIgnored(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	r.ctl.Tick(0.1)

	r.ctl.OnHealthChanged(25, 75)
	require.Equal(t, StateDefensive, r.ctl.State())
	last := r.ctl.Agent().LastDefenseAt

	r.ctl.Tick(0.2)
	r.ctl.OnHealthChanged(25, 50)
	assert.Equal(t, StateDefensive, r.ctl.State())
	assert.Equal(t, last, r.ctl.Agent().LastDefenseAt)
	assert.Equal(t, 1, r.count("defense_triggered"))
	kind, _ := r.ctl.attacks.InFlight()
	assert.Equal(t, AttackDefensiveBrace, kind)
}

func TestController_DefensiveReturnsToPhaseAfterBrace(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	r.ctl.OnHealthChanged(50, 50)
	require.Equal(t, StateDefensive, r.ctl.State())

	r.ctl.Tick(0.5)
	assert.Equal(t, StateDefensive, r.ctl.State(), "never leaves while bracing")

	r.tickUntil(t, 0.1, 30, func() bool { return r.ctl.State() != StateDefensive })
	assert.Equal(t, StatePhase2, r.ctl.State())
	assert.Equal(t, 1, r.count("attack_finished"))
}

func TestController_DefenseCooldownWindow(t *testing.T) {
	r := newRig(DefaultTuning(), 2)
	r.engage(t, 10000)

	// Small hits with the player inside the defensive range qualify every time.
	for i := 0; i < 40; i++ {
		r.ctl.OnHealthChanged(1, 10000-i-1)
		r.ctl.Tick(0.1)
	}
	assert.Equal(t, 1, r.count("defense_triggered"), "only one interrupt in the first four seconds")

	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Now() > 5.1 })
	r.ctl.OnHealthChanged(1, 9000)
	assert.Equal(t, 2, r.count("defense_triggered"))
	assert.Equal(t, StateDefensive, r.ctl.State())
}

func TestController_LethalHitDoesNotDefend(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	r.ctl.OnHealthChanged(100, 0)
	assert.Zero(t, r.count("defense_triggered"))
	r.ctl.OnDeath()
	assert.Equal(t, StateDead, r.ctl.State())
}

// Scenario: death mid-attack in Phase3 is terminal and advances the stage once.
func TestController_DeathIsTerminal(t *testing.T) {
	r := newRig(DefaultTuning(), 20, 0.1)
	r.engage(t, 100)
	for hp := 90; hp >= 30; hp -= 10 {
		r.ctl.OnHealthChanged(10, hp)
	}
	r.ctl.Tick(0.02)
	require.Equal(t, StatePhase3, r.ctl.State())
	r.tickUntil(t, 0.1, 10, func() bool { return r.ctl.Agent().Attacking })

	stops := r.nav.stopCalls
	r.ctl.OnDeath()
	r.ctl.OnDeath()

	assert.Equal(t, StateDead, r.ctl.State())
	assert.Equal(t, 1, r.stage.calls)
	assert.Greater(t, r.nav.stopCalls, stops)
	assert.False(t, r.ctl.Agent().Attacking)
	assert.Equal(t, 1, r.count("died"))

	before := r.ctl.Agent()
	dest, stopCalls, shots, cues := r.nav.destCalls, r.nav.stopCalls, len(r.shots.shots), len(r.anim.cues)
	r.ctl.OnHealthChanged(50, 10)
	r.ctl.OnInitialize(500)
	for i := 0; i < 50; i++ {
		r.ctl.Tick(0.1)
	}
	assert.Equal(t, StateDead, r.ctl.State())
	assert.Equal(t, before, r.ctl.Agent())
	assert.Equal(t, dest, r.nav.destCalls)
	assert.Equal(t, stopCalls, r.nav.stopCalls)
	assert.Equal(t, shots, len(r.shots.shots))
	assert.Equal(t, cues, len(r.anim.cues))
	assert.Equal(t, 1, r.stage.calls)
}

func TestController_SameStateTransitionIsNoop(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.engage(t, 100)
	changes := r.count("state_changed")
	stops := r.nav.stopCalls

	assert.False(t, r.ctl.transition(StatePhase1))
	assert.Equal(t, changes, r.count("state_changed"))
	assert.Equal(t, stops, r.nav.stopCalls)
}

func TestController_PresentationParameters(t *testing.T) {
	r := newRig(DefaultTuning(), 20)
	r.nav.current = 3
	r.engage(t, 100)

	assert.InDelta(t, 20, r.anim.floats[ParamDistanceToPlayer], 1e-9)
	assert.Equal(t, 3.0, r.anim.floats[ParamMoveSpeed])
	assert.True(t, r.anim.bools[ParamPlayerDetected])
	assert.True(t, r.anim.bools[ParamGrounded])
	assert.False(t, r.anim.bools[ParamAttacking])
}

func TestController_WithoutCollaborators(t *testing.T) {
	c := NewController(DefaultTuning(), Deps{})
	c.Start()
	c.OnInitialize(100)
	for i := 0; i < 20; i++ {
		c.Tick(0.1)
	}
	assert.Equal(t, StateIdle, c.State(), "no player means nothing to spot")

	c.OnHealthChanged(5, 95)
	c.Tick(0.1)
	assert.Equal(t, StatePhase1, c.State())
	c.Tick(5)
	assert.False(t, c.Agent().Attacking, "no attacks without a player")

	c.OnDeath()
	assert.Equal(t, StateDead, c.State())
}

func TestController_Snapshot(t *testing.T) {
	r := newRig(DefaultTuning(), 4.5)
	r.engage(t, 200)
	r.ctl.OnHealthChanged(10, 150)
	r.tickUntil(t, 0.1, 20, func() bool { return r.ctl.Agent().Attacking })

	s := r.ctl.Snapshot()
	assert.Equal(t, StatePhase1, s.State)
	assert.Equal(t, 150, s.Health)
	assert.Equal(t, 200, s.MaxHealth)
	assert.InDelta(t, 0.75, s.NormalizedHealth, 1e-9)
	assert.True(t, s.Attacking)
	assert.Equal(t, AttackNormalSwing, s.Attack)
	assert.Equal(t, r.ctl.Now(), s.Time)
}
