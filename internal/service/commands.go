package service

import (
	"context"
	"fmt"
	"strings"

	"stove_control/internal/metrics"
	"stove_control/internal/models"
)

// CommandResult is what the caller sees after a command was handled.
type CommandResult struct {
	Message     string
	SystemState models.SystemMode
	ValveState  bool
}

const msgNotRecognized = "Command not recognized."

// NormalizeCommand lower-cases and trims a spoken or typed command.
func NormalizeCommand(command string) string {
	return strings.ToLower(strings.TrimSpace(command))
}

// ApplyCommand runs a user command through the admission gate and the
// transition table. A rejected command returns the gate's error together
// with the unchanged state.
func (m *SafetyMachine) ApplyCommand(ctx context.Context, command string) (CommandResult, error) {
	cmd := NormalizeCommand(command)

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.Snapshot()
	if err := Admit(snap, cmd); err != nil {
		m.metrics.IncCommand(metrics.CommandRejected)
		m.log.Infow("command_rejected", "command", cmd, "state", snap.SystemState, "reason", err)
		return resultFrom(err.Error(), snap), err
	}
	m.metrics.IncCommand(metrics.CommandAccepted)
	m.log.Infow("command_received", "command", cmd, "state", snap.SystemState)

	msg := m.transition(ctx, cmd, snap)
	return resultFrom(msg, m.store.Snapshot()), nil
}

func (m *SafetyMachine) transition(ctx context.Context, cmd string, snap models.SystemSnapshot) string {
	mode := snap.SystemState
	switch cmd {
	case CmdWake, CmdActivate:
		if mode != models.ModeSleep {
			return fmt.Sprintf("System is already %s.", mode)
		}
		m.setMode(ctx, models.ModeActive, nil, "System activated")
		if cmd == CmdWake {
			return "Hello. How can I assist you today?"
		}
		return "System activated. How can I assist you?"

	case CmdSleep, CmdShutDown:
		m.setMode(ctx, models.ModeSleep, boolPtr(false), "System entering sleep mode")
		return "System entering sleep mode. Goodbye."

	case CmdStartCooking, CmdBoilWater:
		target, label := models.ModeCookingActive, "Cooking mode"
		if cmd == CmdBoilWater {
			target, label = models.ModeCookingBoiling, "Boiling water mode"
		}
		if mode != models.ModeActive && !mode.IsCooking() {
			return fmt.Sprintf("System is %s. Please activate the system first.", mode)
		}
		if !fireAllowsCooking(snap.CookingFireStatus) {
			return fmt.Sprintf("Cannot start %s due to unsafe conditions (e.g., fire outbreak).", strings.ToLower(label))
		}
		m.setMode(ctx, target, boolPtr(true), label+" activated")
		return label + " activated. Gas valve opened."

	case CmdStopCooking, CmdTurnOff:
		if !mode.IsCooking() {
			return fmt.Sprintf("Cooking is not active. System is %s.", mode)
		}
		m.setMode(ctx, models.ModeActive, boolPtr(false), "Cooking stopped")
		return "Cooking stopped. Gas valve closed."

	case CmdEmergencyStop:
		m.raiseAlertLocked(ctx, AlertEmergencyStop)
		return alertSpecs[AlertEmergencyStop].message

	default:
		return msgNotRecognized
	}
}

// setMode moves to mode and, when valve is non-nil, stages the valve in the
// same snapshot before driving the hardware. Closing always lands together
// with or before a mode that requires it; opening only with a cooking mode.
func (m *SafetyMachine) setMode(ctx context.Context, mode models.SystemMode, valve *bool, description string) {
	ch := m.store.Update(func(s *models.SystemSnapshot) {
		if valve != nil {
			m.valve.Stage(s, *valve)
		}
		s.SystemState = mode
	})
	if ch.ModeChanged() {
		m.recordMode(ctx, ch, models.EventModeChange, description, nil)
	}
	if valve != nil {
		m.valve.Actuate(ctx, *valve)
	}
}

func fireAllowsCooking(s models.CookingFireStatus) bool {
	return s == models.FireStatusIdle || s == models.FireStatusCookingSafe
}

func resultFrom(msg string, s models.SystemSnapshot) CommandResult {
	return CommandResult{Message: msg, SystemState: s.SystemState, ValveState: s.ValveState}
}

func boolPtr(b bool) *bool { return &b }
