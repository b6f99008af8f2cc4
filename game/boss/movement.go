package boss

import (
	"math"

	"github.com/jakecoffman/cp"
)

const minFaceDistanceSq = 0.001

// Movement turns "face", "move toward" and "stop" intents into Body and
// Navigator calls. A nil Navigator makes every movement call a no-op.
type Movement struct {
	body     Body
	nav      Navigator
	turnRate float64
	dt       float64
}

// NewMovement wraps body and nav. turnRate is the fraction of the remaining
// turn covered per second.
func NewMovement(body Body, nav Navigator, turnRate float64) *Movement {
	if body == nil {
		body = &fixedBody{}
	}
	return &Movement{body: body, nav: nav, turnRate: turnRate}
}

// setFrameDelta records the dt of the tick in progress; FaceToward scales by it.
func (m *Movement) setFrameDelta(dt float64) {
	m.dt = dt
}

// FaceToward rotates one smoothed step toward p. Points almost on top of the
// body are ignored.
func (m *Movement) FaceToward(p cp.Vector) {
	dir := p.Sub(m.body.Position())
	if dir.LengthSq() < minFaceDistanceSq {
		return
	}
	t := m.dt * m.turnRate
	if t > 1 {
		t = 1
	}
	if t <= 0 {
		return
	}
	cur := m.body.Facing()
	m.body.SetFacing(wrapAngle(cur + wrapAngle(dir.ToAngle()-cur)*t))
}

// MoveToward resumes navigation with p as the destination.
func (m *Movement) MoveToward(p cp.Vector) {
	if m.nav == nil {
		return
	}
	m.nav.SetDestination(p)
}

// Stop halts navigation and drops the current path.
func (m *Movement) Stop() {
	if m.nav == nil {
		return
	}
	m.nav.Stop()
}

// SetSpeed sets the navigation speed.
func (m *Movement) SetSpeed(speed float64) {
	if m.nav == nil {
		return
	}
	m.nav.SetSpeed(speed)
}

// Speed reports the realised movement speed, 0 without a navigator.
func (m *Movement) Speed() float64 {
	if m.nav == nil {
		return 0
	}
	return m.nav.CurrentSpeed()
}

// Position returns the body position.
func (m *Movement) Position() cp.Vector {
	return m.body.Position()
}

// Facing returns the body yaw.
func (m *Movement) Facing() float64 {
	return m.body.Facing()
}

// Forward returns the unit vector of the body yaw.
func (m *Movement) Forward() cp.Vector {
	return cp.ForAngle(m.body.Facing())
}

// wrapAngle normalises a to [-pi, pi].
func wrapAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}

// fixedBody stands in when the host supplies no body: it sits at the origin and
// only remembers its facing.
type fixedBody struct {
	yaw float64
}

func (b *fixedBody) Position() cp.Vector   { return cp.Vector{} }
func (b *fixedBody) Facing() float64       { return b.yaw }
func (b *fixedBody) SetFacing(yaw float64) { b.yaw = yaw }
