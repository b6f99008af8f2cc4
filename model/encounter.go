package model

import (
	"time"

	"gorm.io/datatypes"
)

// Encounter outcomes.
const (
	OutcomeDefeated  = "defeated"
	OutcomeAbandoned = "abandoned"
)

// EncounterRecord is the persisted summary of a finished encounter.
type EncounterRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EncounterID string    `gorm:"uniqueIndex;size:36;not null" json:"encounter_id"`
	OperatorID  int64     `gorm:"index:idx_record_operator" json:"operator_id"`
	Layout      string    `gorm:"size:64" json:"layout"`
	Seed        int64     `json:"seed"`
	Outcome     string    `gorm:"size:16;not null" json:"outcome"`
	FinalState  string    `gorm:"size:16" json:"final_state"`
	MaxHealth   int       `json:"max_health"`
	DamageTaken int       `json:"damage_taken"`
	KillTime    float64   `json:"kill_time"` // simulation seconds
	Attacks     int       `json:"attacks"`
	Defenses    int       `json:"defenses"`
	PlayerHits  int       `json:"player_hits"`
	Stage       int64     `json:"stage"`
	CreatedAt   time.Time `gorm:"index:idx_record_created;autoCreateTime" json:"created_at"`
}

// CombatEvent is one boss event written by the journal.
type CombatEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EncounterID string         `gorm:"index:idx_event_encounter;size:36;not null" json:"encounter_id"`
	Type        string         `gorm:"size:32;not null" json:"type"`
	At          float64        `json:"at"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `gorm:"autoCreateTime:milli" json:"created_at"`
}
