package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/ai"
	"gopkg.in/yaml.v3"
)

// Layout describes an arena floor. Each row is one line of cells; '#' marks a
// blocked cell, anything else is walkable.
type Layout struct {
	Name        string     `yaml:"name"`
	CellSize    float64    `yaml:"cell_size"`
	Rows        []string   `yaml:"rows"`
	BossSpawn   [2]float64 `yaml:"boss_spawn"`
	PlayerSpawn [2]float64 `yaml:"player_spawn"`
}

// DefaultLayout is an open 80x80 field with the player outside the boss's
// acknowledge radius.
func DefaultLayout() *Layout {
	row := strings.Repeat(".", 80)
	rows := make([]string, 80)
	for i := range rows {
		rows[i] = row
	}
	return &Layout{
		Name:        "open_field",
		CellSize:    1,
		Rows:        rows,
		BossSpawn:   [2]float64{40, 40},
		PlayerSpawn: [2]float64{40, 75.5},
	}
}

// LoadLayout reads one YAML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("arena: load %s: %w", path, err)
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("arena: unmarshal %s: %w", path, err)
	}
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := l.validate(); err != nil {
		return nil, fmt.Errorf("arena: %s: %w", path, err)
	}
	return &l, nil
}

// LoadLayouts reads every *.yaml / *.yml file in dir, keyed by layout name.
func LoadLayouts(dir string) (map[string]*Layout, error) {
	out := make(map[string]*Layout)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("arena: read layouts %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !isLayoutFile(e.Name()) {
			continue
		}
		l, err := LoadLayout(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out[l.Name] = l
	}
	return out, nil
}

func isLayoutFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (l *Layout) validate() error {
	if len(l.Rows) == 0 {
		return fmt.Errorf("layout %q has no rows", l.Name)
	}
	if l.CellSize <= 0 {
		l.CellSize = 1
	}
	g := l.Grid()
	if !g.Walkable(l.cellOf(l.spawn(l.BossSpawn))) {
		return fmt.Errorf("layout %q: boss spawn is not walkable", l.Name)
	}
	return nil
}

// Grid builds the walkability grid. Short rows are padded with walkable cells.
func (l *Layout) Grid() *ai.Grid {
	width := 0
	for _, r := range l.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	g := ai.NewGrid(width, len(l.Rows))
	for y, r := range l.Rows {
		for x := 0; x < len(r); x++ {
			if r[x] == '#' {
				g.Block(x, y)
			}
		}
	}
	return g
}

func (l *Layout) spawn(p [2]float64) cp.Vector {
	return cp.Vector{X: p[0], Y: p[1]}
}

func (l *Layout) cellOf(p cp.Vector) (int, int) {
	return cellIndex(p.X, l.CellSize), cellIndex(p.Y, l.CellSize)
}
