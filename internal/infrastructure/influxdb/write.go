package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState = "device_state"
	MeasurementSensors     = "sensors"
)

// DeviceState is one observed device state.
type DeviceState struct {
	DeviceID  string
	Class     string
	Protocol  string
	On        bool
	Reachable bool
}

// SensorReading is one sample of the environmental sensors.
type SensorReading struct {
	Temperature    float64
	Humidity       float64
	MotionDetected bool
	Light          float64
}

// WriteDeviceState records an observed device state. Non-blocking.
func (c *Client) WriteDeviceState(s DeviceState, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(deviceStatePoint(s, at))
}

// WriteSensorReading records a sensor sample. Non-blocking.
func (c *Client) WriteSensorReading(r SensorReading, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sensorPoint(r, at))
}

func deviceStatePoint(s DeviceState, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_id": s.DeviceID,
			"class":     s.Class,
			"protocol":  s.Protocol,
		},
		map[string]interface{}{
			"on":        s.On,
			"reachable": s.Reachable,
		},
		at,
	)
}

func sensorPoint(r SensorReading, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensors,
		nil,
		map[string]interface{}{
			"temperature":     r.Temperature,
			"humidity":        r.Humidity,
			"motion_detected": r.MotionDetected,
			"light":           r.Light,
		},
		at,
	)
}
