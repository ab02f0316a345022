package service

import (
	"context"

	"stove_control/internal/logger"
	"stove_control/internal/metrics"
	"stove_control/internal/models"
)

// ValveController is the only writer of ValveState. Local state always
// reflects the requested position; the hardware write is advisory and is
// never rolled back on failure.
type ValveController struct {
	hw      Hardware
	store   *SnapshotStore
	channel string
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewValveController(hw Hardware, store *SnapshotStore, channel string, log *logger.Logger, m *metrics.Metrics) *ValveController {
	return &ValveController{
		hw:      hw,
		store:   store,
		channel: channel,
		log:     logger.OrNop(log),
		metrics: m,
	}
}

// SetValve records open locally (broadcasting on change) and then drives
// the physical valve. It returns whether the hardware accepted the write.
func (v *ValveController) SetValve(ctx context.Context, open bool) bool {
	v.store.Update(func(s *models.SystemSnapshot) { v.Stage(s, open) })
	return v.Actuate(ctx, open)
}

// Stage writes the requested position into s. Callers use it inside a
// store update so the valve and mode land in the same snapshot.
func (v *ValveController) Stage(s *models.SystemSnapshot, open bool) {
	s.ValveState = open
}

// Actuate sends the position to the device.
func (v *ValveController) Actuate(ctx context.Context, open bool) bool {
	v.metrics.SetValveOpen(open)
	ok := v.hw.Send(ctx, v.channel, valveValue(open))
	if ok {
		v.log.Infow("valve_set", "position", valvePosition(open))
	} else {
		v.log.Errorw("valve_set_failed", "position", valvePosition(open), "connected", v.hw.Connected())
	}
	return ok
}

func valveValue(open bool) string {
	if open {
		return "1"
	}
	return "0"
}

func valvePosition(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}
