package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"stove_control/internal/broadcast"
	"stove_control/internal/models"
	"stove_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockStove records calls and returns canned answers.
type mockStove struct {
	snap       models.SystemSnapshot
	cmdResult  service.CommandResult
	cmdErr     error
	verifyErr  error
	fireErr    error
	voiceErr   error
	panicOnCmd bool

	lastCommand string
	lastStatus  models.VerificationStatus
	lastAge     models.UserAgeClass
	lastFire    models.CookingFireStatus
	lastFood    string
	voiceCodes  []string
}

func (m *mockStove) Snapshot() models.SystemSnapshot { return m.snap }

func (m *mockStove) Subscribe() (<-chan models.SystemSnapshot, func()) {
	ch := make(chan models.SystemSnapshot, 1)
	ch <- m.snap
	return ch, func() {}
}

func (m *mockStove) ApplyCommand(_ context.Context, command string) (service.CommandResult, error) {
	if m.panicOnCmd {
		panic("transition table corrupted")
	}
	m.lastCommand = command
	return m.cmdResult, m.cmdErr
}

func (m *mockStove) SetVerification(_ context.Context, status models.VerificationStatus, age models.UserAgeClass) error {
	m.lastStatus, m.lastAge = status, age
	return m.verifyErr
}

func (m *mockStove) SetCookingFireStatus(_ context.Context, status models.CookingFireStatus) error {
	m.lastFire = status
	return m.fireErr
}

func (m *mockStove) SetFoodDetected(_ context.Context, food string) { m.lastFood = food }

func (m *mockStove) TriggerVoice(_ context.Context, code string) error {
	m.voiceCodes = append(m.voiceCodes, code)
	return m.voiceErr
}

type mockEventLog struct {
	resp     []models.SafetyEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.SafetyEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// fakeDevice stands in for the device bridge.
type fakeDevice struct {
	mu       sync.Mutex
	readings map[string]string
	sends    map[string][]string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{readings: map[string]string{}, sends: map[string][]string{}}
}

func (f *fakeDevice) Send(_ context.Context, channel, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[channel] = append(f.sends[channel], value)
	return true
}

func (f *fakeDevice) Read(_ context.Context, channel string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readings[channel]
}

func (f *fakeDevice) Connected() bool { return true }

func (f *fakeDevice) set(channel, raw string) {
	f.mu.Lock()
	f.readings[channel] = raw
	f.mu.Unlock()
}

type recordingVoice struct {
	mu    sync.Mutex
	codes []string
}

func (v *recordingVoice) Trigger(_ context.Context, code string) error {
	v.mu.Lock()
	v.codes = append(v.codes, code)
	v.mu.Unlock()
	return nil
}

func (v *recordingVoice) received() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.codes...)
}

// stoveRig is a real safety machine behind fake hardware.
type stoveRig struct {
	machine *service.SafetyMachine
	monitor *service.GasMonitor
	device  *fakeDevice
	voice   *recordingVoice
	cfg     service.Config
}

func newStoveRig() *stoveRig {
	cfg := service.Config{}.WithDefaults()
	dev := newFakeDevice()
	voice := &recordingVoice{}
	store := service.NewSnapshotStore(broadcast.NewHub(), dev.Connected)
	valve := service.NewValveController(dev, store, cfg.Channels.Valve, nil, nil)
	machine := service.NewSafetyMachine(cfg, store, valve, dev, voice, nil, nil, nil)
	machine.SetAfterFunc(func(time.Duration, func()) {})
	return &stoveRig{
		machine: machine,
		monitor: service.NewGasMonitor(dev, machine, cfg.Channels.Gas, time.Second, nil),
		device:  dev,
		voice:   voice,
		cfg:     cfg,
	}
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, prometheus.NewRegistry(), nil)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
