package service

import (
	"context"
	"errors"
	"testing"

	"stove_control/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCommand_Transitions(t *testing.T) {
	cases := []struct {
		name      string
		from      models.SystemMode
		valve     bool
		fire      models.CookingFireStatus
		command   string
		wantMode  models.SystemMode
		wantValve bool
		wantMsg   string
	}{
		{"wake from sleep", models.ModeSleep, false, models.FireStatusIdle, "wake", models.ModeActive, false, "Hello. How can I assist you today?"},
		{"activate from sleep", models.ModeSleep, false, models.FireStatusIdle, "activate system", models.ModeActive, false, "System activated. How can I assist you?"},
		{"wake when active", models.ModeActive, false, models.FireStatusIdle, "wake", models.ModeActive, false, "System is already ACTIVE."},
		{"sleep from cooking closes valve", models.ModeCookingActive, true, models.FireStatusCookingSafe, "sleep", models.ModeSleep, false, "System entering sleep mode. Goodbye."},
		{"shut down from active", models.ModeActive, false, models.FireStatusIdle, "shut down", models.ModeSleep, false, "System entering sleep mode. Goodbye."},
		{"start cooking from active", models.ModeActive, false, models.FireStatusIdle, "start cooking", models.ModeCookingActive, true, "Cooking mode activated. Gas valve opened."},
		{"boil water from active", models.ModeActive, false, models.FireStatusCookingSafe, "boil water", models.ModeCookingBoiling, true, "Boiling water mode activated. Gas valve opened."},
		{"boil water while cooking", models.ModeCookingActive, true, models.FireStatusCookingSafe, "boil water", models.ModeCookingBoiling, true, "Boiling water mode activated. Gas valve opened."},
		{"start cooking from sleep", models.ModeSleep, false, models.FireStatusIdle, "start cooking", models.ModeSleep, false, "System is SLEEP. Please activate the system first."},
		{"start cooking during fire", models.ModeActive, false, models.FireStatusFireOutbreak, "start cooking", models.ModeActive, false, "Cannot start cooking mode due to unsafe conditions (e.g., fire outbreak)."},
		{"stop cooking", models.ModeCookingBoiling, true, models.FireStatusCookingSafe, "stop cooking", models.ModeActive, false, "Cooking stopped. Gas valve closed."},
		{"turn off", models.ModeCookingActive, true, models.FireStatusCookingSafe, "turn off", models.ModeActive, false, "Cooking stopped. Gas valve closed."},
		{"stop cooking when idle", models.ModeActive, false, models.FireStatusIdle, "stop cooking", models.ModeActive, false, "Cooking is not active. System is ACTIVE."},
		{"emergency stop", models.ModeCookingActive, true, models.FireStatusCookingSafe, "emergency stop", models.ModeSafetyAlertEmergency, false, "Emergency stop activated!"},
		{"unknown command", models.ModeActive, false, models.FireStatusIdle, "make coffee", models.ModeActive, false, "Command not recognized."},
		{"case and whitespace", models.ModeSleep, false, models.FireStatusIdle, "  WAKE ", models.ModeActive, false, "Hello. How can I assist you today?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.UpdateSilently(func(s *models.SystemSnapshot) {
				s.SystemState = tc.from
				s.ValveState = tc.valve
				s.CookingFireStatus = tc.fire
			})

			res, err := h.machine.ApplyCommand(context.Background(), tc.command)
			require.NoError(t, err)

			assert.Equal(t, tc.wantMsg, res.Message)
			assert.Equal(t, tc.wantMode, res.SystemState)
			assert.Equal(t, tc.wantValve, res.ValveState)
			assert.Equal(t, res.SystemState, h.store.Snapshot().SystemState)
		})
	}
}

func TestApplyCommand_ChildLock(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateSilently(func(s *models.SystemSnapshot) {
		s.SystemState = models.ModeActive
		s.UserAge = models.AgeChild
	})

	res, err := h.machine.ApplyCommand(context.Background(), "start cooking")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChildLock))
	assert.Equal(t, models.ModeActive, res.SystemState)
	assert.False(t, res.ValveState)
	assert.Empty(t, h.hw.sentOn("V0"), "rejected command must not touch the valve")

	res = h.command(t, "sleep")
	assert.Equal(t, models.ModeSleep, res.SystemState)
}

func TestApplyCommand_AlertLockout(t *testing.T) {
	h := newHarness(t)
	h.cooking(t)
	h.machine.RaiseAlert(context.Background(), AlertFireDetected)

	_, err := h.machine.ApplyCommand(context.Background(), "stop cooking")
	assert.ErrorIs(t, err, ErrSafetyLockout)

	res := h.command(t, "emergency stop")
	assert.Equal(t, models.ModeSafetyAlertEmergency, res.SystemState)
	assert.False(t, res.ValveState)
}

func TestApplyCommand_ValveLandsWithMode(t *testing.T) {
	h := newHarness(t)
	h.cooking(t)
	h.command(t, "stop cooking")

	// Each broadcast carries valve and mode from the same transition.
	var modes []models.SystemMode
	var valves []bool
	for _, s := range h.hub.snapshots() {
		modes = append(modes, s.SystemState)
		valves = append(valves, s.ValveState)
	}
	assert.Equal(t, []models.SystemMode{models.ModeActive, models.ModeCookingActive, models.ModeActive}, modes)
	assert.Equal(t, []bool{false, true, false}, valves)
}

func TestNormalizeCommand(t *testing.T) {
	assert.Equal(t, "start cooking", NormalizeCommand("  Start Cooking\n"))
	assert.Equal(t, "", NormalizeCommand("   "))
}
