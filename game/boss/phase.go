package boss

// PhaseEvaluator maps normalized health to a phase using two thresholds, High > Low.
// It is a pure function of its inputs and keeps no history.
type PhaseEvaluator struct {
	High float64
	Low  float64
}

// NewPhaseEvaluator builds an evaluator from the tuning thresholds.
func NewPhaseEvaluator(t Tuning) PhaseEvaluator {
	return PhaseEvaluator{High: t.Phase2Threshold, Low: t.Phase3Threshold}
}

// Evaluate returns the phase for normalized health h.
func (e PhaseEvaluator) Evaluate(h float64) Phase {
	switch {
	case h > e.High:
		return Phase1
	case h > e.Low:
		return Phase2
	default:
		return Phase3
	}
}

// Next returns the desired phase and whether it differs from current.
func (e PhaseEvaluator) Next(h float64, current Phase) (Phase, bool) {
	want := e.Evaluate(h)
	return want, want != current
}
