package arena

import (
	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/boss"
)

var (
	_ boss.Body       = (*Body)(nil)
	_ boss.PlayerInfo = (*Avatar)(nil)
)

// Body is the boss transform. Only the navigator moves it; the controller turns it.
type Body struct {
	pos cp.Vector
	yaw float64
}

func (b *Body) Position() cp.Vector   { return b.pos }
func (b *Body) Facing() float64       { return b.yaw }
func (b *Body) SetFacing(yaw float64) { b.yaw = yaw }

// Avatar is the player as the arena sees it: a point that may leave the arena.
type Avatar struct {
	pos     cp.Vector
	present bool
	hits    int
}

func (a *Avatar) Position() cp.Vector { return a.pos }
func (a *Avatar) Present() bool       { return a.present }
