package boss

// Event is emitted by the Controller for hosts to log, persist or stream.
type Event interface {
	EventType() string
	// EventTime is the controller clock when the event happened.
	EventTime() float64
}

// --- Concrete event types ---

type EventStateChanged struct {
	At   float64 `json:"at"`
	From StateID `json:"from"`
	To   StateID `json:"to"`
}

func (EventStateChanged) EventType() string { return "state_changed" }
func (e EventStateChanged) EventTime() float64 { return e.At }

type EventAttackStarted struct {
	At       float64    `json:"at"`
	Kind     AttackKind `json:"kind"`
	Cooldown float64    `json:"cooldown"`
}

func (EventAttackStarted) EventType() string { return "attack_started" }
func (e EventAttackStarted) EventTime() float64 { return e.At }

type EventAttackFinished struct {
	At       float64    `json:"at"`
	Kind     AttackKind `json:"kind"`
	Cooldown float64    `json:"cooldown"`
}

func (EventAttackFinished) EventType() string { return "attack_finished" }
func (e EventAttackFinished) EventTime() float64 { return e.At }

type EventAttackCancelled struct {
	At   float64    `json:"at"`
	Kind AttackKind `json:"kind"`
}

func (EventAttackCancelled) EventType() string { return "attack_cancelled" }
func (e EventAttackCancelled) EventTime() float64 { return e.At }

type EventDefenseTriggered struct {
	At       float64 `json:"at"`
	Damage   int     `json:"damage"`
	Health   int     `json:"health"`
	BigHit   bool    `json:"big_hit"`
	Distance float64 `json:"distance"`
}

func (EventDefenseTriggered) EventType() string { return "defense_triggered" }
func (e EventDefenseTriggered) EventTime() float64 { return e.At }

type EventHealthChanged struct {
	At     float64 `json:"at"`
	Damage int     `json:"damage"`
	Health int     `json:"health"`
	Max    int     `json:"max"`
}

func (EventHealthChanged) EventType() string { return "health_changed" }
func (e EventHealthChanged) EventTime() float64 { return e.At }

type EventDied struct {
	At float64 `json:"at"`
}

func (EventDied) EventType() string { return "died" }
func (e EventDied) EventTime() float64 { return e.At }
