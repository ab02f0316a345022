package service

import (
	"context"
	"time"

	"stove_control/internal/logger"
	"stove_control/internal/metrics"
	"stove_control/internal/models"
	"stove_control/internal/repository"
)

// Hardware is the device bridge as seen by the controller.
type Hardware interface {
	Send(ctx context.Context, channel, value string) bool
	Read(ctx context.Context, channel string) string
	Connected() bool
}

// VoiceSender forwards opaque voice codes to the device.
type VoiceSender interface {
	Trigger(ctx context.Context, code string) error
}

// Journal records safety events; repository.EventRepo satisfies it.
type Journal interface {
	Append(ctx context.Context, e models.SafetyEvent) error
}

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Stove is the controller surface shared by the HTTP and websocket layers.
type Stove interface {
	Snapshot() models.SystemSnapshot
	Subscribe() (<-chan models.SystemSnapshot, func())
	ApplyCommand(ctx context.Context, command string) (CommandResult, error)
	SetVerification(ctx context.Context, status models.VerificationStatus, age models.UserAgeClass) error
	SetCookingFireStatus(ctx context.Context, status models.CookingFireStatus) error
	SetFoodDetected(ctx context.Context, food string)
	TriggerVoice(ctx context.Context, code string) error
}

// EventLog exposes the safety journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SafetyEvent, error)
}

// Monitor runs the periodic gas sampling loop until ctx is canceled.
type Monitor interface {
	Run(ctx context.Context)
}

// Channels names the device bridge channels.
type Channels struct {
	Valve   string
	Status  string
	Command string
	Gas     string
}

// Config tunes the safety logic.
type Config struct {
	Channels        Channels
	GasThreshold    int
	GasPollInterval time.Duration
	ResetCooldown   time.Duration
	SigningKey      string
	TokenTTL        time.Duration
}

const (
	DefaultGasThreshold    = 600
	DefaultGasPollInterval = time.Second
	DefaultResetCooldown   = 30 * time.Second
)

// WithDefaults fills zero values with the stock appliance settings.
func (c Config) WithDefaults() Config {
	if c.Channels.Valve == "" {
		c.Channels.Valve = "V0"
	}
	if c.Channels.Status == "" {
		c.Channels.Status = "V1"
	}
	if c.Channels.Command == "" {
		c.Channels.Command = "V2"
	}
	if c.Channels.Gas == "" {
		c.Channels.Gas = "V0"
	}
	if c.GasThreshold <= 0 {
		c.GasThreshold = DefaultGasThreshold
	}
	if c.GasPollInterval <= 0 {
		c.GasPollInterval = DefaultGasPollInterval
	}
	if c.ResetCooldown <= 0 {
		c.ResetCooldown = DefaultResetCooldown
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	return c
}

// Service aggregates everything the transport layer needs.
type Service struct {
	Stove
	Monitor
	EventLog
	Authorization

	store *SnapshotStore
}

// HardwareChanged republishes the snapshot after the gateway's
// connectivity flipped, so observers see blynkConnected move.
func (s *Service) HardwareChanged(connected bool) {
	s.store.Refresh()
}

// Deps are the collaborators NewService wires together.
type Deps struct {
	Config  Config
	Gateway Hardware
	Voice   VoiceSender
	Hub     Broadcaster
	Repos   *repository.Repository
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

// NewService builds the controller: one snapshot store, one valve
// controller and one safety machine shared by every entry point.
func NewService(d Deps) *Service {
	cfg := d.Config.WithDefaults()
	store := NewSnapshotStore(d.Hub, d.Gateway.Connected)
	valve := NewValveController(d.Gateway, store, cfg.Channels.Valve, d.Log, d.Metrics)
	machine := NewSafetyMachine(cfg, store, valve, d.Gateway, d.Voice, d.Repos.EventRepo, d.Log, d.Metrics)

	return &Service{
		Stove:         machine,
		Monitor:       NewGasMonitor(d.Gateway, machine, cfg.Channels.Gas, cfg.GasPollInterval, d.Log),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Authorization: NewAuthService(d.Repos.Auth, cfg.SigningKey, cfg.TokenTTL),
		store:         store,
	}
}
