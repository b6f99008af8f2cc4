package arena

import "github.com/kasuganosora/bossarena/game/boss"

// Health is the boss health component. Listeners are told the max health when
// they subscribe, every change afterwards, and the death exactly once.
type Health struct {
	max, cur  int
	dead      bool
	listeners []boss.HealthListener
}

// NewHealth creates a full health pool.
func NewHealth(max int) *Health {
	if max < 0 {
		max = 0
	}
	return &Health{max: max, cur: max}
}

// Subscribe registers l and initialises it.
func (h *Health) Subscribe(l boss.HealthListener) {
	h.listeners = append(h.listeners, l)
	l.OnInitialize(h.max)
}

// Damage removes up to n health and returns the amount actually removed.
// Damage to a dead pool or non-positive damage is ignored.
func (h *Health) Damage(n int) int {
	if h.dead || n <= 0 {
		return 0
	}
	applied := n
	if applied > h.cur {
		applied = h.cur
	}
	h.cur -= applied
	for _, l := range h.listeners {
		l.OnHealthChanged(n, h.cur)
	}
	if h.cur == 0 {
		h.dead = true
		for _, l := range h.listeners {
			l.OnDeath()
		}
	}
	return applied
}

// Heal restores up to n health. Listeners see it as negative damage.
func (h *Health) Heal(n int) int {
	if h.dead || n <= 0 {
		return 0
	}
	restored := n
	if h.cur+restored > h.max {
		restored = h.max - h.cur
	}
	if restored == 0 {
		return 0
	}
	h.cur += restored
	for _, l := range h.listeners {
		l.OnHealthChanged(-restored, h.cur)
	}
	return restored
}

// Current returns the remaining health.
func (h *Health) Current() int { return h.cur }

// Max returns the maximum health.
func (h *Health) Max() int { return h.max }

// Dead reports whether the pool has been emptied.
func (h *Health) Dead() bool { return h.dead }
