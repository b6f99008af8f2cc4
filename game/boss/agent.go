package boss

// neverDefended places the last defense far enough in the past that the first
// qualifying hit is never blocked by the cooldown.
const neverDefended = -999.0

// Agent is the mutable combat state of one boss. Position and facing belong to
// the host Body; everything here is written only by the Controller.
type Agent struct {
	MaxHealth      int
	CurrentHealth  int
	SpottedPlayer  bool
	Attacking      bool
	AttackCooldown float64
	LastDefenseAt  float64
	Grounded       bool
}

func newAgent() *Agent {
	return &Agent{LastDefenseAt: neverDefended, Grounded: true}
}

// NormalizedHealth returns CurrentHealth/MaxHealth clamped to [0,1], or 1 when
// MaxHealth is not positive.
func (a *Agent) NormalizedHealth() float64 {
	if a.MaxHealth <= 0 {
		return 1
	}
	h := float64(a.CurrentHealth) / float64(a.MaxHealth)
	switch {
	case h < 0:
		return 0
	case h > 1:
		return 1
	}
	return h
}

func (a *Agent) setHealth(hp int) {
	if hp < 0 {
		hp = 0
	}
	if a.MaxHealth > 0 && hp > a.MaxHealth {
		hp = a.MaxHealth
	}
	a.CurrentHealth = hp
}
