// Package hardware talks to the remote device bridge that drives the
// stove's valve, reads its gas sensor and plays voice prompts.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stove_control/internal/logger"
	"stove_control/internal/metrics"
)

// Doer is the transport used for bridge calls; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

const (
	DefaultSendTimeout  = 3 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultProbeTimeout = 5 * time.Second

	DefaultProbeInterval = 10 * time.Second

	pathUpdate    = "/external/api/update"
	pathGet       = "/external/api/get"
	pathConnected = "/external/api/isHardwareConnected"

	maxBodyBytes = 64 << 10
)

// Gateway operation names, used for logs and metrics.
const (
	opSend  = "send"
	opRead  = "read"
	opProbe = "probe"
)

// Config describes how to reach the device bridge.
type Config struct {
	BaseURL      string
	Token        string
	SendTimeout  time.Duration
	ReadTimeout  time.Duration
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// Gateway sends values to and reads values from bridge channels. It owns
// the connectivity flag: any transport failure on Send/Read clears it and
// only a successful Connect sets it. There is no retry inside the gateway.
type Gateway struct {
	cfg     Config
	client  Doer
	log     *logger.Logger
	metrics *metrics.Metrics

	connected atomic.Bool

	mu       sync.Mutex
	onChange []func(connected bool)
}

// NewGateway builds a gateway; it starts disconnected until Connect succeeds.
func NewGateway(cfg Config, client Doer, log *logger.Logger, m *metrics.Metrics) *Gateway {
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		cfg:     cfg.withDefaults(),
		client:  client,
		log:     logger.OrNop(log),
		metrics: m,
	}
}

// OnConnectivityChange registers fn to run after every connectivity flip.
func (g *Gateway) OnConnectivityChange(fn func(connected bool)) {
	g.mu.Lock()
	g.onChange = append(g.onChange, fn)
	g.mu.Unlock()
}

// Connected reports the outcome of the last bridge exchange.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// Send writes value to channel. It fails fast without network I/O while
// disconnected.
func (g *Gateway) Send(ctx context.Context, channel, value string) bool {
	if !g.Connected() {
		g.log.Warnw("gateway_send_skipped_disconnected", "channel", channel)
		g.metrics.ObserveGateway(opSend, metrics.ResultSkipped, 0)
		return false
	}

	q := url.Values{}
	q.Set("token", g.cfg.Token)
	q.Set(channel, value)

	start := time.Now()
	status, _, err := g.get(ctx, pathUpdate, q.Encode(), g.cfg.SendTimeout)
	if err != nil {
		g.metrics.ObserveGateway(opSend, metrics.ResultError, time.Since(start))
		g.log.Errorw("gateway_send_failed", "channel", channel, "value", value, "err", err)
		g.setConnected(false)
		return false
	}
	if !isSuccess(status) {
		g.metrics.ObserveGateway(opSend, metrics.ResultError, time.Since(start))
		g.log.Errorw("gateway_send_rejected", "channel", channel, "value", value, "status", status)
		return false
	}
	g.metrics.ObserveGateway(opSend, metrics.ResultSuccess, time.Since(start))
	return true
}

// Read returns the trimmed value of channel, or "" on any failure or while
// disconnected.
func (g *Gateway) Read(ctx context.Context, channel string) string {
	if !g.Connected() {
		g.log.Debugw("gateway_read_skipped_disconnected", "channel", channel)
		g.metrics.ObserveGateway(opRead, metrics.ResultSkipped, 0)
		return ""
	}

	q := url.Values{}
	q.Set("token", g.cfg.Token)
	// the bridge expects a bare channel key without a value
	rawQuery := q.Encode() + "&" + url.QueryEscape(channel)

	start := time.Now()
	status, body, err := g.get(ctx, pathGet, rawQuery, g.cfg.ReadTimeout)
	if err != nil {
		g.metrics.ObserveGateway(opRead, metrics.ResultError, time.Since(start))
		g.log.Errorw("gateway_read_failed", "channel", channel, "err", err)
		g.setConnected(false)
		return ""
	}
	if !isSuccess(status) {
		g.metrics.ObserveGateway(opRead, metrics.ResultError, time.Since(start))
		g.log.Errorw("gateway_read_rejected", "channel", channel, "status", status)
		return ""
	}
	g.metrics.ObserveGateway(opRead, metrics.ResultSuccess, time.Since(start))
	return strings.TrimSpace(body)
}

// Connect probes the bridge and records whether the device is online. It is
// the only path that marks the gateway connected.
func (g *Gateway) Connect(ctx context.Context) bool {
	q := url.Values{}
	q.Set("token", g.cfg.Token)

	start := time.Now()
	status, body, err := g.get(ctx, pathConnected, q.Encode(), g.cfg.ProbeTimeout)
	switch {
	case err != nil:
		g.metrics.ObserveGateway(opProbe, metrics.ResultError, time.Since(start))
		g.log.Errorw("gateway_probe_failed", "err", err)
		g.setConnected(false)
		return false
	case !isSuccess(status) || strings.TrimSpace(body) != "true":
		g.metrics.ObserveGateway(opProbe, metrics.ResultError, time.Since(start))
		g.log.Warnw("gateway_device_offline", "status", status, "body", strings.TrimSpace(body))
		g.setConnected(false)
		return false
	}
	g.metrics.ObserveGateway(opProbe, metrics.ResultSuccess, time.Since(start))
	g.setConnected(true)
	return true
}

// RunProbe re-runs Connect on every tick while the gateway is disconnected,
// until ctx is canceled. A non-positive interval uses DefaultProbeInterval.
func (g *Gateway) RunProbe(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(probeInterval(interval))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if g.Connected() {
				continue
			}
			if g.Connect(ctx) {
				g.log.Infow("gateway_reconnected")
			}
		}
	}
}

func probeInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultProbeInterval
	}
	return d
}

func (g *Gateway) setConnected(v bool) {
	if g.connected.Swap(v) == v {
		return
	}
	g.metrics.SetHardwareConnected(v)
	g.log.Infow("gateway_connectivity_changed", "connected", v)

	g.mu.Lock()
	hooks := append([]func(bool){}, g.onChange...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn(v)
	}
}

var errNoBaseURL = errors.New("device bridge base URL is not configured")

// get performs one bounded GET and returns the status and body.
func (g *Gateway) get(ctx context.Context, path, rawQuery string, timeout time.Duration) (int, string, error) {
	if g.cfg.BaseURL == "" {
		return 0, "", errNoBaseURL
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path+"?"+rawQuery, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read body %s: %w", path, err)
	}
	return resp.StatusCode, string(b), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
