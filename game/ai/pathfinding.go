package ai

import "container/heap"

// Point is a 2D grid coordinate.
type Point struct {
	X, Y int
}

// Grid is a walkability map of square cells. Cells outside the grid are blocked.
type Grid struct {
	Width, Height int
	blocked       []bool
}

// NewGrid creates an all-walkable grid.
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{Width: width, Height: height, blocked: make([]bool, width*height)}
}

func (g *Grid) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// Block marks a cell as unwalkable. Out-of-range cells are ignored.
func (g *Grid) Block(x, y int) {
	if g.inside(x, y) {
		g.blocked[y*g.Width+x] = true
	}
}

// Walkable reports whether a cell can be entered.
func (g *Grid) Walkable(x, y int) bool {
	return g.inside(x, y) && !g.blocked[y*g.Width+x]
}

// CanPass reports whether a unit standing on (x, y) may step by d.
func (g *Grid) CanPass(x, y int, d Point) bool {
	return g.Walkable(x, y) && g.Walkable(x+d.X, y+d.Y)
}

type pathNode struct {
	pt     Point
	g, f   int
	parent *pathNode
}

type openSet []*pathNode

func (o openSet) Len() int            { return len(o) }
func (o openSet) Less(i, j int) bool  { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int)       { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x interface{}) { *o = append(*o, x.(*pathNode)) }
func (o *openSet) Pop() interface{} {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

var steps4 = []Point{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// AStar finds the shortest 4-connected path from `from` to `to` on grid.
// Returns the path as a slice of Points (excluding the start, including the end).
// Returns nil if no path exists.
func AStar(grid *Grid, from, to Point) []Point {
	if grid == nil || !grid.Walkable(to.X, to.Y) {
		return nil
	}
	if from == to {
		return []Point{}
	}

	heuristic := func(a, b Point) int {
		dx := a.X - b.X
		if dx < 0 {
			dx = -dx
		}
		dy := a.Y - b.Y
		if dy < 0 {
			dy = -dy
		}
		return dx + dy
	}

	closed := make(map[Point]bool)
	gScore := map[Point]int{from: 0}
	open := &openSet{{pt: from, f: heuristic(from, to)}}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if closed[cur.pt] {
			continue
		}
		closed[cur.pt] = true

		if cur.pt == to {
			var path []Point
			for n := cur; n.parent != nil; n = n.parent {
				path = append(path, n.pt)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, d := range steps4 {
			np := Point{cur.pt.X + d.X, cur.pt.Y + d.Y}
			if closed[np] || !grid.CanPass(cur.pt.X, cur.pt.Y, d) {
				continue
			}
			ng := cur.g + 1
			if prev, ok := gScore[np]; !ok || ng < prev {
				gScore[np] = ng
				heap.Push(open, &pathNode{pt: np, g: ng, f: ng + heuristic(np, to), parent: cur})
			}
		}
	}

	return nil
}
