package boss

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectAttack_Tables(t *testing.T) {
	tu := DefaultTuning()
	cases := []struct {
		name  string
		phase Phase
		dist  float64
		roll  float64
		want  AttackKind
		ok    bool
	}{
		{"p1 close low roll kicks", Phase1, 2, 0.3, AttackKick, true},
		{"p1 close high roll swings", Phase1, 2, 0.7, AttackNormalSwing, true},
		{"p1 kick band edge", Phase1, 3.2, 0.1, AttackKick, true},
		{"p1 swing band", Phase1, 4.5, 0.1, AttackNormalSwing, true},
		{"p1 swing band edge", Phase1, 4.8, 0.1, AttackNormalSwing, true},
		{"p1 short range shot", Phase1, 15, 0.1, AttackShoot, true},
		{"p1 out of range waits", Phase1, 15.5, 0.1, 0, false},

		{"p2 melee combo", Phase2, 4.8, 0.1, AttackComboChain, true},
		{"p2 mid spin", Phase2, 10, 0.2, AttackSpin, true},
		{"p2 mid combo", Phase2, 19.5, 0.6, AttackComboChain, true},
		{"p2 hailstorm", Phase2, 25, 0.1, AttackHailstorm, true},
		{"p2 out of range waits", Phase2, 26, 0.1, 0, false},

		{"p3 far hailstorm", Phase3, 30, 0.9, AttackHailstorm, true},
		{"p3 mid hailstorm", Phase3, 10, 0.2, AttackHailstorm, true},
		{"p3 mid spin", Phase3, 10, 0.6, AttackSpin, true},
		{"p3 mid band edge is close", Phase3, 5, 0.3, AttackComboChain, true},
		{"p3 close slam", Phase3, 2, 0.5, AttackSlam, true},
		{"p3 close fast combo", Phase3, 2, 0.9, AttackFastCombo, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := SelectAttack(tu, tc.phase, tc.dist, &seqRand{vals: []float64{tc.roll}})
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, kind)
		})
	}
}

func TestSelectAttack_DrawsAtMostOnce(t *testing.T) {
	tu := DefaultTuning()

	r := &seqRand{vals: []float64{0.9}}
	SelectAttack(tu, Phase1, 10, r)
	assert.Zero(t, r.draws, "shooting band needs no roll")

	r = &seqRand{vals: []float64{0.65, 0.1}}
	kind, _ := SelectAttack(tu, Phase3, 2, r)
	assert.Equal(t, 1, r.draws)
	assert.Equal(t, AttackSlam, kind, "both chance nodes compare the same roll")
}

func TestSelectAttack_SeededDistribution(t *testing.T) {
	tu := DefaultTuning()
	rng := rand.New(rand.NewSource(42))
	counts := map[AttackKind]int{}
	for i := 0; i < 2000; i++ {
		kind, ok := SelectAttack(tu, Phase3, 2, rng)
		assert.True(t, ok)
		counts[kind]++
	}
	assert.Len(t, counts, 3)
	assert.InDelta(t, 800, counts[AttackComboChain], 120)
	assert.InDelta(t, 600, counts[AttackSlam], 120)
	assert.InDelta(t, 600, counts[AttackFastCombo], 120)
}

func TestSelectAttack_NilRandRollsZero(t *testing.T) {
	kind, ok := SelectAttack(DefaultTuning(), Phase1, 1, nil)
	assert.True(t, ok)
	assert.Equal(t, AttackKick, kind)
}
