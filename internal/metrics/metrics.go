package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"github.com/nerrad567/irclimate/internal/climate"
)

const namespace = "irclimate"

// Transmission results.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

// breakerStates maps gobreaker state names to gauge values.
var breakerStates = map[string]float64{
	gobreaker.StateClosed.String():   0,
	gobreaker.StateHalfOpen.String(): 1,
	gobreaker.StateOpen.String():     2,
}

// Metrics holds every collector exported by the bridge.
type Metrics struct {
	registry *prometheus.Registry

	transmissions    *prometheus.CounterVec
	sequenceFailures *prometheus.CounterVec
	sequenceDuration *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec

	currentTemperature *prometheus.GaugeVec
	currentHumidity    *prometheus.GaugeVec
	targetTemperature  *prometheus.GaugeVec
	powerOn            *prometheus.GaugeVec
}

// New registers all collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		transmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmissions_total",
			Help:      "IR payload publish attempts by result.",
		}, []string{"device", "result"}),
		sequenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_failures_total",
			Help:      "Climate operations that ended with an error, by reason.",
		}, []string{"device", "reason"}),
		sequenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sequence_duration_seconds",
			Help:      "Wall time of climate operations including settle delays.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 3, 5, 8},
		}, []string{"device"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "IR transport circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"device"}),
		currentTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_temperature_celsius",
			Help:      "Last room temperature reported by the linked sensor.",
		}, []string{"device"}),
		currentHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_humidity_percent",
			Help:      "Last relative humidity reported by the linked sensor.",
		}, []string{"device"}),
		targetTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_temperature_celsius",
			Help:      "Current setpoint.",
		}, []string{"device"}),
		powerOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_on",
			Help:      "Tracked power belief (1 on, 0 off).",
		}, []string{"device"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transmissions,
		m.sequenceFailures,
		m.sequenceDuration,
		m.breakerState,
		m.currentTemperature,
		m.currentHumidity,
		m.targetTemperature,
		m.powerOn,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransmission counts one publish attempt.
func (m *Metrics) ObserveTransmission(deviceID string, err error) {
	m.transmissions.WithLabelValues(deviceID, transmissionResult(err)).Inc()
}

// SetBreakerState records the breaker state by name.
func (m *Metrics) SetBreakerState(deviceID string, state string) {
	v, ok := breakerStates[state]
	if !ok {
		return
	}
	m.breakerState.WithLabelValues(deviceID).Set(v)
}

// ObserveSequence records duration and, on failure, the failure reason.
func (m *Metrics) ObserveSequence(deviceID, _ string, elapsed time.Duration, err error) {
	m.sequenceDuration.WithLabelValues(deviceID).Observe(elapsed.Seconds())
	if err != nil {
		m.sequenceFailures.WithLabelValues(deviceID, climate.ErrorReason(err)).Inc()
	}
}

// StateChanged implements climate.Observer.
func (m *Metrics) StateChanged(_ context.Context, state climate.State) {
	id := state.DeviceID

	m.targetTemperature.WithLabelValues(id).Set(float64(state.TargetTemperature))
	if state.PowerStatus == climate.PowerOn {
		m.powerOn.WithLabelValues(id).Set(1)
	} else {
		m.powerOn.WithLabelValues(id).Set(0)
	}
	if state.CurrentTemperature != nil {
		m.currentTemperature.WithLabelValues(id).Set(*state.CurrentTemperature)
	}
	if state.CurrentHumidity != nil {
		m.currentHumidity.WithLabelValues(id).Set(*state.CurrentHumidity)
	}
}

func transmissionResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ResultRejected
	default:
		return ResultError
	}
}
