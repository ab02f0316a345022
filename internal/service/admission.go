package service

import (
	"errors"
	"fmt"

	"stove_control/internal/models"
)

// Commands understood by the stove. Input is lower-cased and trimmed first.
const (
	CmdWake          = "wake"
	CmdActivate      = "activate system"
	CmdSleep         = "sleep"
	CmdShutDown      = "shut down"
	CmdStartCooking  = "start cooking"
	CmdBoilWater     = "boil water"
	CmdStopCooking   = "stop cooking"
	CmdTurnOff       = "turn off"
	CmdEmergencyStop = "emergency stop"
)

var (
	// ErrSafetyLockout rejects everything but an emergency stop during an alert.
	ErrSafetyLockout = errors.New("cannot execute command")
	// ErrChildLock rejects cooking commands while a child is detected.
	ErrChildLock = errors.New("access denied")
)

// childSafeCommands may be issued while a child is detected.
var childSafeCommands = map[string]struct{}{
	CmdEmergencyStop: {},
	CmdSleep:         {},
	CmdActivate:      {},
}

// Admit checks a normalized command against the current snapshot before it
// reaches the transition table.
func Admit(s models.SystemSnapshot, command string) error {
	if s.SystemState.IsAlert() && command != CmdEmergencyStop {
		return fmt.Errorf("%w. System is in a safety alert state: %s", ErrSafetyLockout, s.SystemState)
	}
	if s.UserAge == models.AgeChild {
		if _, ok := childSafeCommands[command]; !ok {
			return fmt.Errorf("%w. A child is detected. Cannot execute command: %s", ErrChildLock, command)
		}
	}
	return nil
}
