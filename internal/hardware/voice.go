package hardware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stove_control/internal/logger"

	"golang.org/x/time/rate"
)

var (
	ErrEmptyVoiceCode   = errors.New("voice code is empty")
	ErrVoiceRateLimited = errors.New("voice trigger rate limit exceeded")
	ErrVoiceFailed      = errors.New("voice trigger was not delivered")
)

const (
	defaultVoiceTimeout = 3 * time.Second
	defaultVoiceRate    = 2
	defaultVoiceBurst   = 4
)

// VoiceConfig points at an optional dedicated voice endpoint. When URL is
// empty, codes go through the gateway's command channel instead.
type VoiceConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// VoiceTrigger forwards opaque voice codes to the device. Codes have no
// feedback into the controller state.
type VoiceTrigger struct {
	cfg      VoiceConfig
	client   Doer
	fallback *Gateway
	channel  string
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewVoiceTrigger builds a trigger. fallback and channel are used when no
// dedicated voice URL is configured.
func NewVoiceTrigger(cfg VoiceConfig, client Doer, fallback *Gateway, channel string, log *logger.Logger) *VoiceTrigger {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVoiceTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultVoiceRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultVoiceBurst
	}
	if client == nil {
		client = &http.Client{}
	}
	return &VoiceTrigger{
		cfg:      cfg,
		client:   client,
		fallback: fallback,
		channel:  channel,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		log:      logger.OrNop(log),
	}
}

// Trigger sends code to the device.
func (v *VoiceTrigger) Trigger(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyVoiceCode
	}
	if !v.limiter.Allow() {
		v.log.Warnw("voice_trigger_rate_limited", "code", code)
		return ErrVoiceRateLimited
	}

	if v.cfg.URL == "" {
		if v.fallback == nil || !v.fallback.Send(ctx, v.channel, code) {
			return ErrVoiceFailed
		}
		return nil
	}
	return v.sendDirect(ctx, code)
}

func (v *VoiceTrigger) sendDirect(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("token", v.cfg.Token)
	q.Set("v0", code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL+"/update?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build voice request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Errorw("voice_trigger_failed", "code", code, "err", err)
		return fmt.Errorf("%w: %v", ErrVoiceFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		v.log.Warnw("voice_trigger_rejected", "code", code, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrVoiceFailed, resp.StatusCode)
	}
	v.log.Infow("voice_trigger_sent", "code", code)
	return nil
}
