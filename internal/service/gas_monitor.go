package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"stove_control/internal/logger"
)

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// GasSink receives parsed gas readings; SafetyMachine implements it.
type GasSink interface {
	RecordGasLevel(ctx context.Context, level int)
}

// GasMonitor polls the gas sensor channel and hands each reading to the
// safety machine.
type GasMonitor struct {
	hw        Hardware
	sink      GasSink
	channel   string
	interval  time.Duration
	newTicker func(d time.Duration) Ticker
	log       *logger.Logger
}

func NewGasMonitor(hw Hardware, sink GasSink, channel string, interval time.Duration, log *logger.Logger) *GasMonitor {
	if interval <= 0 {
		interval = DefaultGasPollInterval
	}
	return &GasMonitor{
		hw:       hw,
		sink:     sink,
		channel:  channel,
		interval: interval,
		newTicker: func(d time.Duration) Ticker {
			return realTicker{t: time.NewTicker(d)}
		},
		log: logger.OrNop(log),
	}
}

// WithTicker swaps the ticker factory; used by tests.
func (g *GasMonitor) WithTicker(fn func(d time.Duration) Ticker) *GasMonitor {
	g.newTicker = fn
	return g
}

// Run samples once per interval until ctx is canceled.
func (g *GasMonitor) Run(ctx context.Context) {
	g.log.Infow("gas_monitor_started", "interval", g.interval, "channel", g.channel)
	t := g.newTicker(g.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			g.log.Infow("gas_monitor_stopped")
			return
		case <-t.C():
			g.Tick(ctx)
		}
	}
}

// Tick takes one sample and returns the parsed level.
func (g *GasMonitor) Tick(ctx context.Context) int {
	level := ParseGasLevel(g.hw.Read(ctx, g.channel))
	g.sink.RecordGasLevel(ctx, level)
	return level
}

// ParseGasLevel reads the leading integer of raw, like the sensor firmware
// reports it ("412", "412.7", "412ppm"). Anything unparsable, and negative
// values, read as 0. Positive values too large for int saturate at MaxInt.
func ParseGasLevel(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	digits := s[:end]
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(digits, "-") {
		return math.MaxInt
	}
	if err != nil || n < 0 {
		return 0
	}
	return n
}
