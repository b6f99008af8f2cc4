package boss

import (
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	pos cp.Vector
	yaw float64
}

func (b *fakeBody) Position() cp.Vector   { return b.pos }
func (b *fakeBody) Facing() float64       { return b.yaw }
func (b *fakeBody) SetFacing(yaw float64) { b.yaw = yaw }

type fakePlayer struct {
	pos     cp.Vector
	present bool
}

func (p *fakePlayer) Position() cp.Vector { return p.pos }
func (p *fakePlayer) Present() bool       { return p.present }

type fakeNav struct {
	dest      cp.Vector
	destCalls int
	stopCalls int
	speed     float64
	current   float64
}

func (n *fakeNav) SetDestination(p cp.Vector) { n.dest = p; n.destCalls++ }
func (n *fakeNav) Stop()                      { n.stopCalls++ }
func (n *fakeNav) CurrentSpeed() float64      { return n.current }
func (n *fakeNav) SetSpeed(s float64)         { n.speed = s }

type fakeAnim struct {
	floats map[Param]float64
	bools  map[Param]bool
	cues   []Cue
}

func newFakeAnim() *fakeAnim {
	return &fakeAnim{floats: map[Param]float64{}, bools: map[Param]bool{}}
}

func (a *fakeAnim) SetFloat(p Param, v float64) { a.floats[p] = v }
func (a *fakeAnim) SetBool(p Param, v bool)     { a.bools[p] = v }
func (a *fakeAnim) Trigger(c Cue)               { a.cues = append(a.cues, c) }

type shot struct {
	pos    cp.Vector
	facing float64
	vel    cp.Vector
}

type fakeSpawner struct {
	shots []shot
}

func (s *fakeSpawner) Spawn(pos cp.Vector, facing float64, vel cp.Vector) {
	s.shots = append(s.shots, shot{pos: pos, facing: facing, vel: vel})
}

type fakeShockwaves struct {
	at []cp.Vector
}

func (s *fakeShockwaves) SpawnShockwave(pos cp.Vector, _ float64) { s.at = append(s.at, pos) }

type fakeStage struct {
	calls int
}

func (s *fakeStage) AdvanceStage() { s.calls++ }

// seqRand returns its values in order, repeating the last one.
type seqRand struct {
	vals  []float64
	draws int
}

func (r *seqRand) Float64() float64 {
	i := r.draws
	if i >= len(r.vals) {
		i = len(r.vals) - 1
	}
	r.draws++
	if i < 0 {
		return 0
	}
	return r.vals[i]
}

type rig struct {
	ctl    *Controller
	body   *fakeBody
	player *fakePlayer
	nav    *fakeNav
	anim   *fakeAnim
	shots  *fakeSpawner
	shocks *fakeShockwaves
	stage  *fakeStage
	rng    *seqRand
	events []Event
}

// newRig builds a started controller with every collaborator faked. The boss
// stands at the origin facing +X; the player stands at (dist, 0).
func newRig(t Tuning, dist float64, draws ...float64) *rig {
	if len(draws) == 0 {
		draws = []float64{0.1}
	}
	r := &rig{
		body:   &fakeBody{},
		player: &fakePlayer{pos: cp.Vector{X: dist}, present: true},
		nav:    &fakeNav{},
		anim:   newFakeAnim(),
		shots:  &fakeSpawner{},
		shocks: &fakeShockwaves{},
		stage:  &fakeStage{},
		rng:    &seqRand{vals: draws},
	}
	r.ctl = NewController(t, Deps{
		Body:        r.body,
		Player:      r.player,
		Navigator:   r.nav,
		Animation:   r.anim,
		Projectiles: r.shots,
		Shockwaves:  r.shocks,
		Stage:       r.stage,
		Rand:        r.rng,
		Emit:        func(e Event) { r.events = append(r.events, e) },
	})
	r.ctl.Start()
	return r
}

// tickUntil ticks by dt until cond holds, failing after max ticks.
func (r *rig) tickUntil(t *testing.T, dt float64, max int, cond func() bool) {
	t.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		r.ctl.Tick(dt)
	}
	require.True(t, cond(), "condition not reached after %d ticks", max)
}

func (r *rig) count(eventType string) int {
	n := 0
	for _, e := range r.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// engage initialises health and ticks once so the boss spots the player.
func (r *rig) engage(t *testing.T, maxHealth int) {
	t.Helper()
	r.ctl.OnInitialize(maxHealth)
	r.ctl.Tick(0.02)
	require.Equal(t, StatePhase1, r.ctl.State())
}
