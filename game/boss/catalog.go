package boss

import "sort"

// Catalog holds the attack templates built from one Tuning.
type Catalog struct {
	tuning   Tuning
	routines map[AttackKind]*AttackRoutine
}

// NewCatalog builds every attack routine for t.
func NewCatalog(t Tuning) *Catalog {
	c := &Catalog{tuning: t, routines: make(map[AttackKind]*AttackRoutine)}

	c.add(newRoutine(AttackNormalSwing, t.NormalSwingDuration,
		do(faceTarget), cue(CueNormalSwing), wait(t.NormalSwingDuration)))

	c.add(newRoutine(AttackKick, t.KickDuration,
		do(faceTarget), cue(CueKick), wait(t.KickDuration)))

	c.add(newRoutine(AttackSlam, t.SlamDuration, slamSteps(t)...))

	c.add(newRoutine(AttackSpin, t.SpinDuration,
		do(faceTarget), cue(CueSpinSwing),
		during(t.SpinDuration, chaseTarget),
		do(stopMoving)))

	c.add(newRoutine(AttackShoot, t.ShootDuration, shootSteps(t, false)...))
	c.add(newRoutine(AttackLongShoot, t.ShootDuration, shootSteps(t, true)...))

	c.add(newRoutine(AttackFastCombo, t.FastComboDuration,
		do(faceTarget), cue(CueFastCombo), wait(t.FastComboDuration)))

	c.add(newRoutine(AttackComboChain, t.SwingComboDuration+t.Combo2Duration,
		do(faceTarget), cue(CueSwingCombo), wait(t.SwingComboDuration),
		do(faceTarget), cue(CueCombo2), wait(t.Combo2Duration)))

	shots := max(t.HailstormShotCount, 1)
	c.add(newRoutine(AttackHailstorm,
		t.HailstormWindup+float64(shots)*t.HailstormInterval+t.HailstormRecovery,
		do(faceTarget), cue(CueShoot), wait(t.HailstormWindup),
		expand(func(ctl *Controller) []step { return volleySteps(ctl, t) })))

	brace := append([]step{do(faceTarget), cue(CueKick), wait(t.KickDuration * 0.5)}, slamSteps(t)...)
	c.add(newRoutine(AttackDefensiveBrace, t.KickDuration*0.5+t.SlamDuration, brace...))

	return c
}

func (c *Catalog) add(r *AttackRoutine) {
	c.routines[r.Kind] = r
}

// Get returns the routine for kind, or nil when the kind is unknown.
func (c *Catalog) Get(kind AttackKind) *AttackRoutine {
	return c.routines[kind]
}

// Kinds lists the catalogued attack kinds in declaration order.
func (c *Catalog) Kinds() []AttackKind {
	kinds := make([]AttackKind, 0, len(c.routines))
	for k := range c.routines {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func slamSteps(t Tuning) []step {
	half := t.SlamDuration * 0.5
	return []step{
		do(faceTarget), cue(CueSlam),
		wait(half),
		do(func(ctl *Controller) { ctl.spawnShockwave() }),
		wait(t.SlamDuration - half),
	}
}

func shootSteps(t Tuning, long bool) []step {
	speed := t.ProjectileSpeed
	if long {
		speed = t.LongProjectileSpeed
	}
	half := t.ShootDuration * 0.5
	return []step{
		do(faceTarget), cue(CueShoot),
		wait(half),
		do(func(ctl *Controller) { ctl.fireAtTarget(speed) }),
		wait(t.ShootDuration - half),
	}
}

// volleySteps is resolved after the windup so the base aim uses the player's
// position at that moment.
func volleySteps(ctl *Controller, t Tuning) []step {
	if !ctl.hasProjectiles() {
		return shootSteps(t, true)
	}
	base := ctl.aimYaw()
	angles := HailstormAngles(t.HailstormSpread, t.HailstormShotCount)
	steps := make([]step, 0, 2*len(angles)+1)
	for _, deg := range angles {
		yaw := base + degToRad(deg)
		steps = append(steps,
			do(func(ctl *Controller) { ctl.fireAlong(yaw, t.HailstormShotSpeed) }),
			wait(t.HailstormInterval))
	}
	return append(steps, wait(t.HailstormRecovery))
}

// HailstormAngles returns the per-shot offsets in degrees, spread linearly
// across [-spread, +spread]. A single shot goes straight ahead; a count
// below one is treated as one.
func HailstormAngles(spread float64, count int) []float64 {
	count = max(count, 1)
	angles := make([]float64, count)
	for i := range angles {
		t := 0.5
		if count > 1 {
			t = float64(i) / float64(count-1)
		}
		angles[i] = -spread + 2*spread*t
	}
	return angles
}

func cue(c Cue) step {
	return do(func(ctl *Controller) { ctl.trigger(c) })
}

func faceTarget(ctl *Controller)  { ctl.faceTarget() }
func chaseTarget(ctl *Controller) { ctl.chaseTarget() }
func stopMoving(ctl *Controller)  { ctl.move.Stop() }
