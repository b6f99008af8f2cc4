package boss

import "math"

// DefenseTrigger decides whether a hit forces the Defensive state.
type DefenseTrigger struct {
	Cooldown       float64
	Range          float64
	BigHitFraction float64
}

// NewDefenseTrigger builds a trigger from the tuning.
func NewDefenseTrigger(t Tuning) DefenseTrigger {
	return DefenseTrigger{
		Cooldown:       t.DefensiveCooldown,
		Range:          t.DefensiveRange,
		BigHitFraction: t.BigHitFraction,
	}
}

// BigHit reports whether damage reaches ceil(maxHealth*BigHitFraction).
// A boss without a positive max health never takes big hits.
func (d DefenseTrigger) BigHit(damage, maxHealth int) bool {
	if maxHealth <= 0 {
		return false
	}
	return float64(damage) >= math.Ceil(float64(maxHealth)*d.BigHitFraction)
}

// ShouldDefend applies the full rule: the cooldown since lastDefense has passed,
// the hit is big or the player is within Range, and the boss is in a state that
// may be interrupted.
func (d DefenseTrigger) ShouldDefend(now, lastDefense float64, damage, maxHealth int, distance float64, state StateID) bool {
	if state == StateDefensive || state == StateDead {
		return false
	}
	if now-lastDefense <= d.Cooldown {
		return false
	}
	return d.BigHit(damage, maxHealth) || distance <= d.Range
}
