package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/homify-core/internal/device"
	"github.com/nerrad567/homify-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homify-core/internal/sensors"
)

// StateWriter is the subset of *influxdb.Client used for history.
type StateWriter interface {
	WriteDeviceState(s influxdb.DeviceState, at time.Time)
	WriteSensorReading(r influxdb.SensorReading, at time.Time)
}

// History is a device.Listener that records observed device states and
// sensor readings as time series.
type History struct {
	writer   StateWriter
	registry *device.Registry
	now      func() time.Time
}

// NewHistory creates a History. registry supplies each device's protocol.
func NewHistory(writer StateWriter, registry *device.Registry) *History {
	return &History{writer: writer, registry: registry, now: time.Now}
}

// OnStatus records the state seen by a status read.
func (h *History) OnStatus(_ context.Context, deviceID string, entry device.Entry) {
	h.writer.WriteDeviceState(h.state(deviceID, entry.Type, entry.On, entry.Reachable), h.now())
}

// OnControl records the commanded state of a successful command.
func (h *History) OnControl(_ context.Context, ev device.ControlEvent) {
	if ev.Err != nil {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = h.now()
	}
	h.writer.WriteDeviceState(h.state(ev.DeviceID, ev.Class, ev.On, true), at)
}

// RecordReading records a sensor sample.
func (h *History) RecordReading(r sensors.Reading) {
	h.writer.WriteSensorReading(influxdb.SensorReading{
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		MotionDetected: r.MotionDetected,
		Light:          r.Light,
	}, h.now())
}

func (h *History) state(deviceID string, class device.Class, on, reachable bool) influxdb.DeviceState {
	s := influxdb.DeviceState{
		DeviceID:  deviceID,
		Class:     string(class),
		On:        on,
		Reachable: reachable,
	}
	if h.registry == nil {
		return s
	}
	if d, ok := h.registry.Get(deviceID); ok {
		s.Protocol = string(d.Protocol)
	}
	return s
}
