package arena

import (
	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/boss"
)

var _ boss.ProjectileSpawner = (*ProjectileField)(nil)

const projectileRadius = 0.25

type projectile struct {
	body  *cp.Body
	shape *cp.Shape
	age   float64
}

// ProjectileField simulates boss projectiles in a chipmunk space. Projectiles
// expire after ttl seconds or on the first hit against the avatar.
type ProjectileField struct {
	space     *cp.Space
	avatar    *Avatar
	ttl       float64
	hitRadius float64

	live    []*projectile
	spawned int
	hits    int
}

// NewProjectileField creates an empty field that scores hits against avatar.
func NewProjectileField(avatar *Avatar, ttl, hitRadius float64) *ProjectileField {
	space := cp.NewSpace()
	space.SetGravity(cp.Vector{})
	return &ProjectileField{space: space, avatar: avatar, ttl: ttl, hitRadius: hitRadius}
}

// Spawn launches a projectile from pos with the given velocity.
func (f *ProjectileField) Spawn(pos cp.Vector, facing float64, velocity cp.Vector) {
	body := cp.NewBody(1, cp.MomentForCircle(1, 0, projectileRadius, cp.Vector{}))
	body.SetPosition(pos)
	body.SetAngle(facing)
	body.SetVelocityVector(velocity)
	shape := cp.NewCircle(body, projectileRadius, cp.Vector{})
	shape.SetSensor(true)

	f.space.AddBody(body)
	f.space.AddShape(shape)
	f.live = append(f.live, &projectile{body: body, shape: shape})
	f.spawned++
}

// Step advances every projectile and returns the number of new hits.
func (f *ProjectileField) Step(dt float64) int {
	if dt <= 0 || len(f.live) == 0 {
		return 0
	}
	f.space.Step(dt)

	hits := 0
	kept := f.live[:0]
	for _, p := range f.live {
		p.age += dt
		hit := f.avatar != nil && f.avatar.present &&
			p.body.Position().Distance(f.avatar.pos) <= f.hitRadius
		if hit {
			hits++
		}
		if hit || (f.ttl > 0 && p.age >= f.ttl) {
			f.remove(p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(f.live); i++ {
		f.live[i] = nil
	}
	f.live = kept
	f.hits += hits
	if f.avatar != nil {
		f.avatar.hits += hits
	}
	return hits
}

func (f *ProjectileField) remove(p *projectile) {
	f.space.RemoveShape(p.shape)
	f.space.RemoveBody(p.body)
}

// Positions returns the position of every live projectile.
func (f *ProjectileField) Positions() []cp.Vector {
	out := make([]cp.Vector, 0, len(f.live))
	for _, p := range f.live {
		out = append(out, p.body.Position())
	}
	return out
}

// Live is the number of projectiles in flight.
func (f *ProjectileField) Live() int { return len(f.live) }

// Spawned is the number of projectiles ever launched.
func (f *ProjectileField) Spawned() int { return f.spawned }

// Hits is the number of projectiles that struck the avatar.
func (f *ProjectileField) Hits() int { return f.hits }
