package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"stove_control/internal/logger"
	"stove_control/internal/metrics"
	"stove_control/internal/models"

	"github.com/google/uuid"
)

// AlertKind names the condition that forced the valve shut.
type AlertKind string

const (
	AlertGasLeak       AlertKind = "GAS_LEAK"
	AlertFireDetected  AlertKind = "FIRE_DETECTED"
	AlertInvalidUser   AlertKind = "INVALID_USER"
	AlertEmergencyStop AlertKind = "EMERGENCY_STOP"
)

type alertSpec struct {
	mode    models.SystemMode
	code    string // advisory code for the command channel
	message string
}

var alertSpecs = map[AlertKind]alertSpec{
	AlertGasLeak:       {models.ModeSafetyAlertGas, "SAFETY_GAS_LEAK", "Gas leak detected! Valve closed."},
	AlertFireDetected:  {models.ModeSafetyAlertFire, "SAFETY_FIRE", "Fire detected! Valve closed."},
	AlertInvalidUser:   {models.ModeSafetyAlertUser, "SAFETY_INVALID_USER", "Unauthorized user detected! Valve closed."},
	AlertEmergencyStop: {models.ModeSafetyAlertEmergency, "EMERGENCY_STOP", "Emergency stop activated!"},
}

// Advisory codes for the status channel.
const (
	codeAdultVerified = "ADULT_VERIFIED"
	codeChildDetected = "CHILD_DETECTED"
)

var errNoVoice = errors.New("voice trigger is not configured")

// AfterFunc schedules f once after d; time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func())

// SafetyMachine owns every transition of the stove's state. Each entry
// point runs under txMu, so a transition's writes and hardware calls are
// never interleaved with another transition. Snapshot reads only take the
// store's lock and never wait for hardware I/O.
type SafetyMachine struct {
	cfg     Config
	store   *SnapshotStore
	valve   *ValveController
	hw      Hardware
	voice   VoiceSender
	journal Journal
	log     *logger.Logger
	metrics *metrics.Metrics

	afterFunc AfterFunc

	txMu sync.Mutex
}

// NewSafetyMachine wires the machine. journal and voice may be nil.
func NewSafetyMachine(
	cfg Config,
	store *SnapshotStore,
	valve *ValveController,
	hw Hardware,
	voice VoiceSender,
	journal Journal,
	log *logger.Logger,
	m *metrics.Metrics,
) *SafetyMachine {
	sm := &SafetyMachine{
		cfg:     cfg.WithDefaults(),
		store:   store,
		valve:   valve,
		hw:      hw,
		voice:   voice,
		journal: journal,
		log:     logger.OrNop(log),
		metrics: m,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	sm.metrics.SetMode("", string(store.Snapshot().SystemState))
	return sm
}

// SetAfterFunc replaces the cool-down scheduler; tests fire it by hand.
func (m *SafetyMachine) SetAfterFunc(fn AfterFunc) {
	m.txMu.Lock()
	m.afterFunc = fn
	m.txMu.Unlock()
}

func (m *SafetyMachine) Snapshot() models.SystemSnapshot {
	return m.store.Snapshot()
}

func (m *SafetyMachine) Subscribe() (<-chan models.SystemSnapshot, func()) {
	return m.store.Subscribe()
}

// RaiseAlert forces the valve closed and enters the alert's mode.
func (m *SafetyMachine) RaiseAlert(ctx context.Context, kind AlertKind) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.raiseAlertLocked(ctx, kind)
}

// raiseAlertLocked closes the valve on every call. The mode switch, the
// advisory code and the cool-down timer happen only when the machine is not
// already in this alert's mode. Reports whether a new episode started.
func (m *SafetyMachine) raiseAlertLocked(ctx context.Context, kind AlertKind) bool {
	spec, ok := alertSpecs[kind]
	if !ok {
		m.log.Warnw("safety_alert_unknown", "kind", kind)
		return false
	}

	entered := false
	ch := m.store.Update(func(s *models.SystemSnapshot) {
		m.valve.Stage(s, false)
		if s.SystemState != spec.mode {
			s.SystemState = spec.mode
			entered = true
		}
	})
	m.valve.Actuate(ctx, false)
	if !entered {
		return false
	}

	m.log.Warnw("safety_alert_raised", "kind", kind, "from", ch.Before.SystemState, "message", spec.message)
	m.metrics.IncSafetyAlert(string(kind))
	m.recordMode(ctx, ch, models.EventAlert, spec.message, map[string]any{
		"kind":      string(kind),
		"gas_level": ch.After.GasLevel,
	})

	m.hw.Send(ctx, m.cfg.Channels.Command, spec.code)

	m.afterFunc(m.cfg.ResetCooldown, func() {
		m.CheckSafetyReset(context.Background())
	})
	return true
}

// CheckSafetyReset returns an alert mode to ACTIVE once gas is below the
// threshold, no fire is reported and no child is detected.
func (m *SafetyMachine) CheckSafetyReset(ctx context.Context) bool {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.checkSafetyResetLocked(ctx)
}

func (m *SafetyMachine) checkSafetyResetLocked(ctx context.Context) bool {
	ch := m.store.Update(func(s *models.SystemSnapshot) {
		if s.SystemState.IsAlert() && m.conditionsNormal(*s) {
			s.SystemState = models.ModeActive
		}
	})
	if !ch.ModeChanged() {
		return false
	}
	m.log.Infow("safety_reset", "from", ch.Before.SystemState)
	m.recordMode(ctx, ch, models.EventReset, "Safety conditions normalized. System ready.", nil)
	return true
}

func (m *SafetyMachine) conditionsNormal(s models.SystemSnapshot) bool {
	return s.GasLevel < m.cfg.GasThreshold &&
		s.CookingFireStatus != models.FireStatusFireOutbreak &&
		s.UserAge != models.AgeChild
}

// RecordGasLevel stores a sensor reading and raises a gas alert on every
// reading above the threshold.
func (m *SafetyMachine) RecordGasLevel(ctx context.Context, level int) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	ch := m.store.Update(func(s *models.SystemSnapshot) {
		s.GasLevel = level
	})
	if ch.Before.GasLevel != level {
		m.metrics.SetGasLevel(level)
		m.log.Debugw("gas_level_changed", "from", ch.Before.GasLevel, "to", level)
	}
	if level > m.cfg.GasThreshold {
		m.raiseAlertLocked(ctx, AlertGasLeak)
	}
}

// TriggerVoice forwards an opaque voice code from an observer.
func (m *SafetyMachine) TriggerVoice(ctx context.Context, code string) error {
	if m.voice == nil {
		return errNoVoice
	}
	return m.voice.Trigger(ctx, code)
}

// recordMode keeps metrics and the journal in step with a mode change.
func (m *SafetyMachine) recordMode(ctx context.Context, ch Change, eventType, description string, meta map[string]any) {
	if ch.ModeChanged() {
		m.metrics.SetMode(string(ch.Before.SystemState), string(ch.After.SystemState))
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["from"] = string(ch.Before.SystemState)
	meta["to"] = string(ch.After.SystemState)
	meta["valve_open"] = ch.After.ValveState
	m.appendEvent(ctx, eventType, description, ch.After.SystemState, meta)
}

func (m *SafetyMachine) appendEvent(ctx context.Context, eventType, description string, mode models.SystemMode, meta map[string]any) {
	if m.journal == nil {
		return
	}
	err := m.journal.Append(ctx, models.SafetyEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Mode:        string(mode),
		Metadata:    meta,
	})
	if err != nil {
		m.log.Errorw("journal_append_failed", "type", eventType, "err", err)
	}
}
