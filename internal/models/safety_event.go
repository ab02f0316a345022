package models

import "time"

// Journal event types.
const (
	EventAlert        = "ALERT"
	EventReset        = "RESET"
	EventModeChange   = "MODE_CHANGE"
	EventVerification = "VERIFICATION"
	EventFireStatus   = "FIRE_STATUS"
)

// SafetyEvent is a single entry of the safety journal.
type SafetyEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // ALERT | RESET | MODE_CHANGE | VERIFICATION | FIRE_STATUS
	Description string    `json:"description"` // human-readable
	Mode        string    `json:"mode,omitempty"`
	Metadata    any       `json:"metadata,omitempty"`
}
