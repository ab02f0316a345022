package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stove"

// Gateway call results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Command outcomes.
const (
	CommandAccepted = "accepted"
	CommandRejected = "rejected"
)

// Metrics holds the controller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gasLevel          prometheus.Gauge
	valveOpen         prometheus.Gauge
	hardwareConnected prometheus.Gauge
	systemMode        *prometheus.GaugeVec

	safetyAlerts    *prometheus.CounterVec
	commands        *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gasLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_level_ppm",
			Help:      "Last gas sensor reading",
		}),
		valveOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valve_open",
			Help:      "1 when the gas valve is recorded open",
		}),
		hardwareConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hardware_connected",
			Help:      "1 while the device bridge is reachable",
		}),
		systemMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_mode",
			Help:      "1 for the current system mode, 0 otherwise",
		}, []string{"mode"}),
		safetyAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_alerts_total",
			Help:      "Alert episodes entered, by kind",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "User commands by outcome",
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Device bridge calls by operation and result",
		}, []string{"op", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Device bridge call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.gasLevel,
			m.valveOpen,
			m.hardwareConnected,
			m.systemMode,
			m.safetyAlerts,
			m.commands,
			m.gatewayRequests,
			m.gatewayLatency,
		)
	}
	return m
}

func (m *Metrics) SetGasLevel(v int) {
	if m == nil {
		return
	}
	m.gasLevel.Set(float64(v))
}

func (m *Metrics) SetValveOpen(open bool) {
	if m == nil {
		return
	}
	m.valveOpen.Set(boolToFloat(open))
}

func (m *Metrics) SetHardwareConnected(ok bool) {
	if m == nil {
		return
	}
	m.hardwareConnected.Set(boolToFloat(ok))
}

// SetMode flips the mode gauge so exactly one label reads 1.
func (m *Metrics) SetMode(prev, next string) {
	if m == nil {
		return
	}
	if prev != "" && prev != next {
		m.systemMode.WithLabelValues(prev).Set(0)
	}
	m.systemMode.WithLabelValues(next).Set(1)
}

func (m *Metrics) IncSafetyAlert(kind string) {
	if m == nil {
		return
	}
	m.safetyAlerts.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCommand(outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(outcome).Inc()
}

// ObserveGateway records one device bridge call.
func (m *Metrics) ObserveGateway(op, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(op, result).Inc()
	if result != ResultSkipped {
		m.gatewayLatency.WithLabelValues(op).Observe(took.Seconds())
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
