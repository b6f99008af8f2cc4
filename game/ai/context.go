package ai

// AIContext is passed to every behavior tree node during one decision pass.
// The random roll is drawn lazily and at most once per pass, so every Chance
// node in a pass compares against the same value.
type AIContext struct {
	Distance float64
	Choice   int
	Chosen   bool

	draw   func() float64
	roll   float64
	rolled bool
}

// NewContext builds a pass context for a target at distance. draw supplies the
// roll in [0,1); a nil draw always rolls 0.
func NewContext(distance float64, draw func() float64) *AIContext {
	return &AIContext{Distance: distance, draw: draw}
}

// Roll returns this pass's random value.
func (c *AIContext) Roll() float64 {
	if !c.rolled {
		c.rolled = true
		if c.draw != nil {
			c.roll = c.draw()
		}
	}
	return c.roll
}

// Rolled reports whether the pass consumed a random value.
func (c *AIContext) Rolled() bool {
	return c.rolled
}

// Choose records the decision of the pass. The first choice wins.
func (c *AIContext) Choose(choice int) {
	if c.Chosen {
		return
	}
	c.Choice = choice
	c.Chosen = true
}
