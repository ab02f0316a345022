package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"stove_control/internal/models"
)

type sentValue struct {
	Channel string
	Value   string
}

// fakeHardware records every send and serves canned reads.
type fakeHardware struct {
	mu        sync.Mutex
	connected bool
	sendOK    bool
	sends     []sentValue
	readings  map[string]string
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{connected: true, sendOK: true, readings: map[string]string{}}
}

func (f *fakeHardware) Send(_ context.Context, channel, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentValue{channel, value})
	return f.connected && f.sendOK
}

func (f *fakeHardware) Read(_ context.Context, channel string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ""
	}
	return f.readings[channel]
}

func (f *fakeHardware) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeHardware) setConnected(ok bool) {
	f.mu.Lock()
	f.connected = ok
	f.mu.Unlock()
}

func (f *fakeHardware) setReading(channel, raw string) {
	f.mu.Lock()
	f.readings[channel] = raw
	f.mu.Unlock()
}

// sentOn returns the values written to channel, in order.
func (f *fakeHardware) sentOn(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sends {
		if s.Channel == channel {
			out = append(out, s.Value)
		}
	}
	return out
}

// fakeHub remembers every published snapshot.
type fakeHub struct {
	mu        sync.Mutex
	published []models.SystemSnapshot
}

func (h *fakeHub) Publish(s models.SystemSnapshot) {
	h.mu.Lock()
	h.published = append(h.published, s)
	h.mu.Unlock()
}

func (h *fakeHub) Subscribe(initial *models.SystemSnapshot) (<-chan models.SystemSnapshot, func()) {
	ch := make(chan models.SystemSnapshot, 1)
	if initial != nil {
		ch <- *initial
	}
	return ch, func() {}
}

func (h *fakeHub) snapshots() []models.SystemSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.SystemSnapshot(nil), h.published...)
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.published)
}

type fakeVoice struct {
	codes []string
	err   error
}

func (v *fakeVoice) Trigger(_ context.Context, code string) error {
	v.codes = append(v.codes, code)
	return v.err
}

// manualTimers captures cool-down callbacks instead of scheduling them.
type manualTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, f)
	m.mu.Unlock()
}

// fire runs every pending callback, as if the cool-down elapsed.
func (m *manualTimers) fire() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (m *manualTimers) scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delays)
}

type harness struct {
	machine *SafetyMachine
	store   *SnapshotStore
	hw      *fakeHardware
	hub     *fakeHub
	journal *fakeEventRepo
	voice   *fakeVoice
	timers  *manualTimers
	cfg     Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		hw:      newFakeHardware(),
		hub:     &fakeHub{},
		journal: &fakeEventRepo{},
		voice:   &fakeVoice{},
		timers:  &manualTimers{},
		cfg:     Config{}.WithDefaults(),
	}
	h.store = NewSnapshotStore(h.hub, h.hw.Connected)
	valve := NewValveController(h.hw, h.store, h.cfg.Channels.Valve, nil, nil)
	h.machine = NewSafetyMachine(h.cfg, h.store, valve, h.hw, h.voice, h.journal, nil, nil)
	h.machine.SetAfterFunc(h.timers.AfterFunc)
	t.Cleanup(func() { h.assertValveInvariant(t) })
	return h
}

// assertValveInvariant checks that no observer ever saw an open valve in
// a mode that requires it closed.
func (h *harness) assertValveInvariant(t *testing.T) {
	t.Helper()
	for i, s := range h.hub.snapshots() {
		if s.SystemState.RequiresClosedValve() && s.ValveState {
			t.Errorf("broadcast %d: valve open in %s", i, s.SystemState)
		}
		if s.ValveState && !s.SystemState.IsCooking() {
			t.Errorf("broadcast %d: valve open outside cooking (%s)", i, s.SystemState)
		}
	}
	if s := h.store.Snapshot(); s.SystemState.RequiresClosedValve() && s.ValveState {
		t.Errorf("final snapshot: valve open in %s", s.SystemState)
	}
}

func (h *harness) command(t *testing.T, cmd string) CommandResult {
	t.Helper()
	res, err := h.machine.ApplyCommand(context.Background(), cmd)
	if err != nil {
		t.Fatalf("command %q rejected: %v", cmd, err)
	}
	return res
}

// cooking brings the machine from SLEEP into COOKING_ACTIVE.
func (h *harness) cooking(t *testing.T) {
	t.Helper()
	h.command(t, CmdWake)
	h.command(t, CmdStartCooking)
	if got := h.store.Snapshot().SystemState; got != models.ModeCookingActive {
		t.Fatalf("setup: mode=%s, want COOKING_ACTIVE", got)
	}
}
