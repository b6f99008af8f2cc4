package arena

import (
	"github.com/jakecoffman/cp"
	"github.com/kasuganosora/bossarena/game/boss"
)

var (
	_ boss.AnimationSink    = (*AnimationRecorder)(nil)
	_ boss.ShockwaveSpawner = (*ShockwaveLog)(nil)
)

const maxRecentCues = 16

// AnimationState is the presentation the boss last pushed.
type AnimationState struct {
	Floats map[boss.Param]float64 `json:"floats"`
	Bools  map[boss.Param]bool    `json:"bools"`
	Cues   []boss.Cue             `json:"recent_cues"`
	Counts map[boss.Cue]int       `json:"cue_counts"`
}

// AnimationRecorder keeps the latest animation parameters and a short cue history.
type AnimationRecorder struct {
	floats map[boss.Param]float64
	bools  map[boss.Param]bool
	cues   []boss.Cue
	counts map[boss.Cue]int
}

func NewAnimationRecorder() *AnimationRecorder {
	return &AnimationRecorder{
		floats: make(map[boss.Param]float64),
		bools:  make(map[boss.Param]bool),
		counts: make(map[boss.Cue]int),
	}
}

func (a *AnimationRecorder) SetFloat(p boss.Param, v float64) { a.floats[p] = v }
func (a *AnimationRecorder) SetBool(p boss.Param, v bool)     { a.bools[p] = v }

func (a *AnimationRecorder) Trigger(c boss.Cue) {
	a.counts[c]++
	a.cues = append(a.cues, c)
	if len(a.cues) > maxRecentCues {
		a.cues = a.cues[len(a.cues)-maxRecentCues:]
	}
}

// State copies the recorded presentation.
func (a *AnimationRecorder) State() AnimationState {
	s := AnimationState{
		Floats: make(map[boss.Param]float64, len(a.floats)),
		Bools:  make(map[boss.Param]bool, len(a.bools)),
		Cues:   append([]boss.Cue(nil), a.cues...),
		Counts: make(map[boss.Cue]int, len(a.counts)),
	}
	for k, v := range a.floats {
		s.Floats[k] = v
	}
	for k, v := range a.bools {
		s.Bools[k] = v
	}
	for k, v := range a.counts {
		s.Counts[k] = v
	}
	return s
}

// Shockwave is one ground shockwave.
type Shockwave struct {
	At       float64   `json:"at"`
	Position cp.Vector `json:"position"`
	Facing   float64   `json:"facing"`
}

// ShockwaveLog records shockwaves against the encounter clock.
type ShockwaveLog struct {
	clock func() float64
	waves []Shockwave
}

func NewShockwaveLog(clock func() float64) *ShockwaveLog {
	return &ShockwaveLog{clock: clock}
}

func (l *ShockwaveLog) SpawnShockwave(pos cp.Vector, facing float64) {
	at := 0.0
	if l.clock != nil {
		at = l.clock()
	}
	l.waves = append(l.waves, Shockwave{At: at, Position: pos, Facing: facing})
}

// All returns every shockwave so far.
func (l *ShockwaveLog) All() []Shockwave {
	return append([]Shockwave(nil), l.waves...)
}

// Count is the number of shockwaves so far.
func (l *ShockwaveLog) Count() int { return len(l.waves) }
