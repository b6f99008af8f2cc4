package boss

import "github.com/jakecoffman/cp"

// The world is the ground plane: cp.Vector.X is world X and cp.Vector.Y is world Z.
// Facing is a yaw angle in radians measured like cp.Vector.ToAngle.

// Body is the host-owned transform of the boss.
type Body interface {
	Position() cp.Vector
	Facing() float64
	SetFacing(yaw float64)
}

// PlayerInfo reports where the player is. An absent player counts as infinitely far.
type PlayerInfo interface {
	Position() cp.Vector
	Present() bool
}

// Navigator executes movement intents.
type Navigator interface {
	SetDestination(p cp.Vector)
	Stop()
	CurrentSpeed() float64
	SetSpeed(speed float64)
}

// AnimationSink receives presentation parameters and cue pulses. Best effort.
type AnimationSink interface {
	SetFloat(param Param, v float64)
	SetBool(param Param, v bool)
	Trigger(cue Cue)
}

// ProjectileSpawner creates a projectile in the world.
type ProjectileSpawner interface {
	Spawn(pos cp.Vector, facing float64, velocity cp.Vector)
}

// ShockwaveSpawner creates a ground shockwave.
type ShockwaveSpawner interface {
	SpawnShockwave(pos cp.Vector, facing float64)
}

// StageProgression is told once when the boss dies.
type StageProgression interface {
	AdvanceStage()
}

// Rand is the randomness source for attack selection. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// HealthListener receives health notifications from the host's health component.
type HealthListener interface {
	OnInitialize(maxHealth int)
	OnHealthChanged(damage, newHealth int)
	OnDeath()
}

// Param names an animation parameter.
type Param string

const (
	ParamPlayerDetected   Param = "PlayerDetected"
	ParamGrounded         Param = "Grounded"
	ParamAttacking        Param = "Attacking"
	ParamMoveSpeed        Param = "MoveSpeed"
	ParamDistanceToPlayer Param = "DistanceToPlayer"
)

// Cue names an animation trigger.
type Cue string

const (
	CueNormalSwing Cue = "NormalSwing"
	CueKick        Cue = "Kick"
	CueSlam        Cue = "Slam"
	CueSpinSwing   Cue = "SpinSwing"
	CueShoot       Cue = "Shoot"
	CueFastCombo   Cue = "FastCombo"
	CueSwingCombo  Cue = "SwingCombo"
	CueCombo2      Cue = "Combo2"
)
