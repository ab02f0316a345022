package models

import "strings"

// SystemMode is the authoritative operating mode of the stove.
type SystemMode string

const (
	ModeSleep                SystemMode = "SLEEP"
	ModeActive               SystemMode = "ACTIVE"
	ModeCookingActive        SystemMode = "COOKING_ACTIVE"
	ModeCookingBoiling       SystemMode = "COOKING_BOILING"
	ModeSafetyAlertGas       SystemMode = "SAFETY_ALERT_GAS"
	ModeSafetyAlertFire      SystemMode = "SAFETY_ALERT_FIRE"
	ModeSafetyAlertUser      SystemMode = "SAFETY_ALERT_USER"
	ModeSafetyAlertEmergency SystemMode = "SAFETY_ALERT_EMERGENCY"
)

const safetyAlertPrefix = "SAFETY_ALERT"

// IsAlert reports whether the mode is one of the SAFETY_ALERT_* modes.
func (m SystemMode) IsAlert() bool {
	return strings.HasPrefix(string(m), safetyAlertPrefix)
}

// IsCooking reports whether the gas is meant to be burning in this mode.
func (m SystemMode) IsCooking() bool {
	return m == ModeCookingActive || m == ModeCookingBoiling
}

// RequiresClosedValve reports whether the valve must be closed in this mode.
func (m SystemMode) RequiresClosedValve() bool {
	return m == ModeSleep || m.IsAlert()
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
)

// Valid reports whether v is a known verification status.
func (v VerificationStatus) Valid() bool {
	return v == VerificationPending || v == VerificationVerified
}

type UserAgeClass string

const (
	AgeUnknown UserAgeClass = "UNKNOWN"
	AgeAdult   UserAgeClass = "ADULT"
	AgeChild   UserAgeClass = "CHILD"
)

// Valid reports whether a is a known age class.
func (a UserAgeClass) Valid() bool {
	return a == AgeUnknown || a == AgeAdult || a == AgeChild
}

// CookingFireStatus is reported by the perception front-end, never derived locally.
type CookingFireStatus string

const (
	FireStatusIdle         CookingFireStatus = "IDLE"
	FireStatusCookingSafe  CookingFireStatus = "COOKING_SAFE"
	FireStatusFireOutbreak CookingFireStatus = "FIRE_OUTBREAK"
)

// Valid reports whether s is a known cooking/fire status.
func (s CookingFireStatus) Valid() bool {
	return s == FireStatusIdle || s == FireStatusCookingSafe || s == FireStatusFireOutbreak
}

// DefaultFoodLabel is shown until the food classifier reports something.
const DefaultFoodLabel = "Detecting..."

// SystemSnapshot is the single authoritative record of observable stove state.
type SystemSnapshot struct {
	SystemState        SystemMode         `json:"systemState"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	UserAge            UserAgeClass       `json:"userAge"`
	GasLevel           int                `json:"gasLevel"`
	// ValveState is true when the valve is open.
	ValveState bool `json:"valveState"`
	// HardwareConnected mirrors the gateway's connectivity; only the gateway changes it.
	HardwareConnected bool              `json:"blynkConnected"`
	CookingFireStatus CookingFireStatus `json:"currentCookingFireStatus"`
	FoodBeingPrepared string            `json:"foodBeingPrepared"`
}

// DefaultSnapshot returns the process-start state.
func DefaultSnapshot() SystemSnapshot {
	return SystemSnapshot{
		SystemState:        ModeSleep,
		VerificationStatus: VerificationPending,
		UserAge:            AgeUnknown,
		GasLevel:           0,
		ValveState:         false,
		HardwareConnected:  false,
		CookingFireStatus:  FireStatusIdle,
		FoodBeingPrepared:  DefaultFoodLabel,
	}
}
