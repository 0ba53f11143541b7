package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/homify-core/internal/device"
)

// Result label values.
const (
	ResultOK              = "ok"
	ResultError           = "error"
	ResultOffline         = "offline"
	ResultUnresolved      = "unresolved"
	ResultUnknownProtocol = "unknown_protocol"
)

var (
	// DeviceCommands counts control attempts by device, source and result.
	DeviceCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homify",
			Name:      "device_commands_total",
			Help:      "Total number of device control attempts",
		},
		[]string{"device_id", "source", "result"},
	)

	// DeviceStatusReads counts status reads; result is ok or offline.
	DeviceStatusReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homify",
			Name:      "device_status_reads_total",
			Help:      "Total number of device status reads",
		},
		[]string{"device_id", "result"},
	)

	// DeviceConnections counts startup connection outcomes.
	DeviceConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homify",
			Name:      "device_connections_total",
			Help:      "Startup connection attempts by protocol and result",
		},
		[]string{"protocol", "result"},
	)

	// DeviceConnectDuration observes how long each startup connect took.
	DeviceConnectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "homify",
			Name:      "device_connect_duration_seconds",
			Help:      "Duration of startup device connection attempts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"protocol"},
	)

	// DevicesConnected is the size of the live connection table.
	DevicesConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "homify",
			Name:      "devices_connected",
			Help:      "Number of devices with a live connection",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the default registry. Safe to
// call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(DeviceCommands)        //nolint:errcheck // Duplicate registration is harmless
		prometheus.DefaultRegisterer.Register(DeviceStatusReads)     //nolint:errcheck // Duplicate registration is harmless
		prometheus.DefaultRegisterer.Register(DeviceConnections)     //nolint:errcheck // Duplicate registration is harmless
		prometheus.DefaultRegisterer.Register(DeviceConnectDuration) //nolint:errcheck // Duplicate registration is harmless
		prometheus.DefaultRegisterer.Register(DevicesConnected)      //nolint:errcheck // Duplicate registration is harmless
	})
}

// RecordConnections records the outcome of connection initialisation.
func RecordConnections(conns *device.Connections) {
	for _, o := range conns.Outcomes() {
		protocol := string(o.Protocol)
		if protocol == "" {
			protocol = "none"
		}
		DeviceConnections.WithLabelValues(protocol, outcomeResult(o.Err)).Inc()
		if o.Duration > 0 {
			DeviceConnectDuration.WithLabelValues(protocol).Observe(o.Duration.Seconds())
		}
	}
	DevicesConnected.Set(float64(conns.Len()))
}

func outcomeResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, device.ErrAddressUnresolved):
		return ResultUnresolved
	case errors.Is(err, device.ErrUnknownProtocol):
		return ResultUnknownProtocol
	default:
		return ResultError
	}
}

// MetricsListener is a device.Listener that counts reads and commands.
type MetricsListener struct{}

// OnStatus counts one status read.
func (MetricsListener) OnStatus(_ context.Context, deviceID string, entry device.Entry) {
	result := ResultOK
	if !entry.Reachable {
		result = ResultOffline
	}
	DeviceStatusReads.WithLabelValues(deviceID, result).Inc()
}

// OnControl counts one control attempt.
func (MetricsListener) OnControl(_ context.Context, ev device.ControlEvent) {
	DeviceCommands.WithLabelValues(ev.DeviceID, ev.Source, outcomeResult(ev.Err)).Inc()
}
