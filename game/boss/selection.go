package boss

import "github.com/kasuganosora/bossarena/game/ai"

// choiceRetry is the tree outcome for "nothing in range, look again shortly".
const choiceRetry = 0

// selector holds one decision tree per phase. Branch order inside each tree
// decides overlapping distance bands.
type selector struct {
	trees map[Phase]*ai.BehaviorTree
}

func newSelector(t Tuning) *selector {
	s := t.Selection
	pick := func(k AttackKind) ai.Node { return ai.Choose(int(k)) }
	retry := ai.Choose(choiceRetry)

	phase1 := ai.Select(
		ai.Seq(ai.Within(t.MeleeRange*s.Phase1KickBand),
			ai.Select(
				ai.Seq(ai.Chance(s.Phase1KickChance), pick(AttackKick)),
				pick(AttackNormalSwing))),
		ai.Seq(ai.Within(t.MeleeRange*s.Phase1SwingBand), pick(AttackNormalSwing)),
		ai.Seq(ai.Within(t.ShortRange), pick(AttackShoot)),
		retry,
	)

	phase2 := ai.Select(
		ai.Seq(ai.Within(t.MeleeRange*s.Phase2ComboBand), pick(AttackComboChain)),
		ai.Seq(ai.Within(t.ShortRange*s.Phase2SpinBand),
			ai.Select(
				ai.Seq(ai.Chance(s.Phase2SpinChance), pick(AttackSpin)),
				pick(AttackComboChain))),
		ai.Seq(ai.Within(t.LongRange), pick(AttackHailstorm)),
		retry,
	)

	phase3 := ai.Select(
		ai.Seq(ai.Beyond(t.LongRange), pick(AttackHailstorm)),
		ai.Seq(ai.Beyond(t.MeleeRange*s.Phase3MidBand),
			ai.Select(
				ai.Seq(ai.Chance(s.Phase3HailstormChance), pick(AttackHailstorm)),
				pick(AttackSpin))),
		ai.Select(
			ai.Seq(ai.Chance(s.Phase3ComboBelow), pick(AttackComboChain)),
			ai.Seq(ai.Chance(s.Phase3SlamBelow), pick(AttackSlam)),
			pick(AttackFastCombo)),
	)

	return &selector{trees: map[Phase]*ai.BehaviorTree{
		Phase1: {Root: phase1},
		Phase2: {Root: phase2},
		Phase3: {Root: phase3},
	}}
}

// choose runs the phase's tree for a player at distance. It returns false when
// the boss should wait and retry instead of attacking.
func (s *selector) choose(p Phase, distance float64, rng Rand) (AttackKind, bool) {
	tree, ok := s.trees[p]
	if !ok {
		return 0, false
	}
	var draw func() float64
	if rng != nil {
		draw = rng.Float64
	}
	choice, chosen := tree.Decide(ai.NewContext(distance, draw))
	if !chosen || choice == choiceRetry {
		return 0, false
	}
	return AttackKind(choice), true
}

// SelectAttack exposes one selection pass for tools and tests.
func SelectAttack(t Tuning, p Phase, distance float64, rng Rand) (AttackKind, bool) {
	return newSelector(t).choose(p, distance, rng)
}

// attackCooldown is the cooldown applied after attacks chosen in phase p.
func (t Tuning) attackCooldown(p Phase) float64 {
	switch p {
	case Phase2:
		return t.Phase2Cooldown
	case Phase3:
		return t.Phase3Cooldown
	default:
		return t.Phase1Cooldown
	}
}

// chaseRadius is the distance beyond which a phase keeps walking toward the player.
func (t Tuning) chaseRadius(p Phase) float64 {
	if p == Phase3 {
		return t.MeleeRange * t.Selection.Phase3ChaseBand
	}
	return t.MeleeRange
}
