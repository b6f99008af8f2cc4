package boss

import "fmt"

// AttackKind identifies an attack in the catalog.
type AttackKind int

const (
	AttackNormalSwing AttackKind = iota + 1
	AttackKick
	AttackSlam
	AttackSpin
	AttackShoot
	AttackLongShoot
	AttackFastCombo
	AttackComboChain
	AttackHailstorm
	AttackDefensiveBrace
)

var attackNames = map[AttackKind]string{
	AttackNormalSwing:    "normal_swing",
	AttackKick:           "kick",
	AttackSlam:           "slam",
	AttackSpin:           "spin",
	AttackShoot:          "shoot",
	AttackLongShoot:      "long_shoot",
	AttackFastCombo:      "fast_combo",
	AttackComboChain:     "combo_chain",
	AttackHailstorm:      "hailstorm",
	AttackDefensiveBrace: "defensive_brace",
}

func (k AttackKind) String() string {
	if n, ok := attackNames[k]; ok {
		return n
	}
	return "none"
}

// MarshalText lets AttackKind appear by name in JSON payloads.
func (k AttackKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses an attack name written by MarshalText.
func (k *AttackKind) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*k = 0
		return nil
	}
	for kind, name := range attackNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("boss: unknown attack %q", b)
}

type stepKind int

const (
	stepDo     stepKind = iota // run fn once, take no time
	stepWait                   // let dur seconds pass
	stepDuring                 // run fn every tick until dur seconds have passed
	stepExpand                 // replace itself with the steps returned by expand
)

// step is one element of an attack routine. Effects receive the controller
// that owns the scheduler running them.
type step struct {
	kind   stepKind
	dur    float64
	fn     func(c *Controller)
	expand func(c *Controller) []step
}

func do(fn func(c *Controller)) step {
	return step{kind: stepDo, fn: fn}
}

func wait(d float64) step {
	if d < 0 {
		d = 0
	}
	return step{kind: stepWait, dur: d}
}

func during(d float64, fn func(c *Controller)) step {
	return step{kind: stepDuring, dur: d, fn: fn}
}

func expand(fn func(c *Controller) []step) step {
	return step{kind: stepExpand, expand: fn}
}

// AttackRoutine is an immutable attack definition: a kind, its nominal
// duration and the ordered steps that play it out.
type AttackRoutine struct {
	Kind     AttackKind
	Duration float64
	steps    []step
}

func newRoutine(kind AttackKind, duration float64, steps ...step) *AttackRoutine {
	return &AttackRoutine{Kind: kind, Duration: duration, steps: steps}
}

// Steps reports how many top-level steps the routine has.
func (r *AttackRoutine) Steps() int {
	return len(r.steps)
}
