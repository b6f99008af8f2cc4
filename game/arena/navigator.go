package arena

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/ai"
	"github.com/kasuganosora/bossarena/game/boss"
)

var _ boss.Navigator = (*GridNavigator)(nil)

// GridNavigator walks the boss body along A* paths over the arena grid.
// Paths are only re-planned when the destination changes cell.
type GridNavigator struct {
	body     *Body
	grid     *ai.Grid
	cellSize float64

	speed    float64
	current  float64
	stopped  bool
	destCell ai.Point
	path     []cp.Vector
}

// NewGridNavigator creates a stopped navigator. A nil grid walks straight lines.
func NewGridNavigator(body *Body, grid *ai.Grid, cellSize float64) *GridNavigator {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &GridNavigator{body: body, grid: grid, cellSize: cellSize, stopped: true}
}

func cellIndex(v, size float64) int {
	return int(math.Floor(v / size))
}

func (n *GridNavigator) cellOf(p cp.Vector) ai.Point {
	return ai.Point{X: cellIndex(p.X, n.cellSize), Y: cellIndex(p.Y, n.cellSize)}
}

func (n *GridNavigator) center(c ai.Point) cp.Vector {
	return cp.Vector{X: (float64(c.X) + 0.5) * n.cellSize, Y: (float64(c.Y) + 0.5) * n.cellSize}
}

// SetDestination resumes movement toward p.
func (n *GridNavigator) SetDestination(p cp.Vector) {
	n.stopped = false
	dc := n.cellOf(p)
	if len(n.path) > 0 && dc == n.destCell {
		n.path[len(n.path)-1] = p
		return
	}
	n.destCell = dc
	n.path = n.plan(p)
}

func (n *GridNavigator) plan(p cp.Vector) []cp.Vector {
	if n.grid == nil {
		return []cp.Vector{p}
	}
	cells := ai.AStar(n.grid, n.cellOf(n.body.pos), n.destCell)
	if cells == nil {
		return nil
	}
	wps := make([]cp.Vector, 0, len(cells)+1)
	for i, c := range cells {
		if i == len(cells)-1 {
			break
		}
		wps = append(wps, n.center(c))
	}
	return append(wps, p)
}

// Stop halts the body and drops the path.
func (n *GridNavigator) Stop() {
	n.stopped = true
	n.path = nil
	n.current = 0
}

// CurrentSpeed is the speed realised during the last Step.
func (n *GridNavigator) CurrentSpeed() float64 { return n.current }

// SetSpeed sets the walking speed.
func (n *GridNavigator) SetSpeed(speed float64) { n.speed = speed }

// Step moves the body along the path for dt seconds.
func (n *GridNavigator) Step(dt float64) {
	if n.stopped || len(n.path) == 0 || dt <= 0 || n.speed <= 0 {
		n.current = 0
		return
	}
	budget := n.speed * dt
	moved := 0.0
	pos := n.body.pos
	for budget > 0 && len(n.path) > 0 {
		wp := n.path[0]
		d := pos.Distance(wp)
		if d <= budget {
			pos = wp
			budget -= d
			moved += d
			n.path = n.path[1:]
			continue
		}
		pos = pos.Add(wp.Sub(pos).Mult(budget / d))
		moved += budget
		budget = 0
	}
	n.body.pos = pos
	n.current = moved / dt
}

// Remaining returns the waypoints still ahead.
func (n *GridNavigator) Remaining() []cp.Vector {
	return append([]cp.Vector(nil), n.path...)
}
