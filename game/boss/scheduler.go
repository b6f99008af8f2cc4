package boss

// attackRun is the execution state of one in-flight routine.
type attackRun struct {
	routine  *AttackRoutine
	cooldown float64
	steps    []step
	next     int
	elapsed  float64 // time already spent in steps[next]
}

// AttackScheduler owns at most one in-flight attack and advances it by
// elapsed tick time. It never blocks; a routine suspends between ticks only.
type AttackScheduler struct {
	agent *Agent
	move  *Movement
	owner *Controller
	cur   *attackRun
	now   func() float64
	emit  func(Event)
}

func newAttackScheduler(agent *Agent, move *Movement, owner *Controller) *AttackScheduler {
	s := &AttackScheduler{
		agent: agent,
		move:  move,
		owner: owner,
		now:   func() float64 { return 0 },
		emit:  func(Event) {},
	}
	if owner != nil {
		s.now = owner.Now
		s.emit = owner.emitEvent
	}
	return s
}

// Begin starts routine and applies cooldown when it completes. It returns false
// without side effects when an attack is already in flight or routine is nil.
// The routine's leading instant steps run before Begin returns.
func (s *AttackScheduler) Begin(routine *AttackRoutine, cooldown float64) bool {
	if s.cur != nil || routine == nil {
		return false
	}
	run := &attackRun{
		routine:  routine,
		cooldown: cooldown,
		steps:    append([]step(nil), routine.steps...),
	}
	s.cur = run
	s.agent.Attacking = true
	s.move.Stop()
	s.emit(EventAttackStarted{At: s.now(), Kind: routine.Kind, Cooldown: cooldown})
	s.run(run, 0)
	return true
}

// Advance resumes the in-flight routine with dt seconds of budget.
func (s *AttackScheduler) Advance(dt float64) {
	if s.cur == nil {
		return
	}
	s.run(s.cur, dt)
}

// Cancel aborts the in-flight routine. No later step runs and no cooldown is
// applied; the agent is left ready with a zero cooldown.
func (s *AttackScheduler) Cancel() bool {
	run := s.cur
	if run == nil {
		return false
	}
	s.cur = nil
	s.agent.Attacking = false
	s.agent.AttackCooldown = 0
	s.emit(EventAttackCancelled{At: s.now(), Kind: run.routine.Kind})
	return true
}

// InFlight reports the kind of the running attack.
func (s *AttackScheduler) InFlight() (AttackKind, bool) {
	if s.cur == nil {
		return 0, false
	}
	return s.cur.routine.Kind, true
}

func (s *AttackScheduler) run(run *attackRun, budget float64) {
	for run.next < len(run.steps) {
		// An effect may have cancelled this run, e.g. by forcing a transition.
		if s.cur != run {
			return
		}
		st := run.steps[run.next]
		switch st.kind {
		case stepDo:
			run.next++
			st.fn(s.owner)
		case stepWait:
			need := st.dur - run.elapsed
			if budget < need {
				run.elapsed += budget
				return
			}
			budget -= need
			run.next++
			run.elapsed = 0
		case stepDuring:
			st.fn(s.owner)
			run.elapsed += budget
			if run.elapsed < st.dur {
				return
			}
			run.next++
			run.elapsed = 0
		case stepExpand:
			more := st.expand(s.owner)
			rest := append(more, run.steps[run.next+1:]...)
			run.steps = append(run.steps[:run.next], rest...)
		}
	}
	if s.cur == run {
		s.finish(run)
	}
}

func (s *AttackScheduler) finish(run *attackRun) {
	s.cur = nil
	s.agent.Attacking = false
	s.agent.AttackCooldown = run.cooldown
	s.emit(EventAttackFinished{At: s.now(), Kind: run.routine.Kind, Cooldown: run.cooldown})
}
