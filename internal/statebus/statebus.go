// Package statebus mirrors device state onto MQTT and accepts on/off
// commands from it.
//
// A Bus is a device.Listener: every status read and every successful
// command publishes the device's state, retained, to homify/state/{id}.
// Unchanged states are not republished. Commands arrive on
// homify/command/{id} as {"on": bool} and go through the same
// device.Service as HTTP requests, tagged with source "mqtt".
package statebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/homify-core/internal/device"
	"github.com/nerrad567/homify-core/internal/infrastructure/mqtt"
)

// commandTimeout bounds one MQTT-initiated command.
const commandTimeout = 15 * time.Second

// ErrInvalidCommand is returned for command messages that cannot be parsed.
var ErrInvalidCommand = errors.New("statebus: invalid command")

// Broker is the subset of *mqtt.Client the bus uses.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Controller switches devices. *device.Service satisfies it.
type Controller interface {
	Control(ctx context.Context, id string, on bool) (device.ControlResult, error)
}

// StateMessage is the retained payload of a state topic.
type StateMessage struct {
	Name      string       `json:"name"`
	On        bool         `json:"on"`
	Type      device.Class `json:"type"`
	Reachable bool         `json:"reachable"`
}

// CommandMessage is the payload of a command topic.
type CommandMessage struct {
	On *bool `json:"on"`
}

// Bus connects a Controller to an MQTT broker.
type Bus struct {
	broker Broker
	ctrl   Controller
	topics mqtt.Topics
	logger device.Logger

	ctx context.Context

	cacheMu sync.Mutex
	cache   map[string]StateMessage
}

// New creates a Bus. logger may be nil.
func New(broker Broker, ctrl Controller, logger device.Logger) *Bus {
	return &Bus{
		broker: broker,
		ctrl:   ctrl,
		logger: logger,
		ctx:    context.Background(),
		cache:  make(map[string]StateMessage),
	}
}

// Start subscribes to device commands. Commands run under ctx, so
// cancelling it aborts in-flight commands on shutdown.
func (b *Bus) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.broker.Subscribe(b.topics.AllDeviceCommands(), b.broker.QoS(), b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to device commands: %w", err)
	}
	return nil
}

// OnStatus publishes an observed state.
func (b *Bus) OnStatus(_ context.Context, deviceID string, entry device.Entry) {
	b.publish(deviceID, StateMessage{
		Name:      entry.Name,
		On:        entry.On,
		Type:      entry.Type,
		Reachable: entry.Reachable,
	})
}

// OnControl publishes the commanded state. Failed commands publish nothing.
func (b *Bus) OnControl(_ context.Context, ev device.ControlEvent) {
	if ev.Err != nil {
		return
	}
	b.publish(ev.DeviceID, StateMessage{
		Name:      ev.Name,
		On:        ev.On,
		Type:      ev.Class,
		Reachable: true,
	})
}

func (b *Bus) publish(deviceID string, msg StateMessage) {
	if b.stateUnchanged(deviceID, msg) {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshal state", err, deviceID)
		return
	}
	if err := b.broker.PublishRetained(b.topics.DeviceState(deviceID), payload); err != nil {
		b.forget(deviceID)
		b.logError("publish state", err, deviceID)
	}
}

// stateUnchanged reports whether msg equals the last published state and
// records it otherwise.
func (b *Bus) stateUnchanged(deviceID string, msg StateMessage) bool {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()

	if prev, ok := b.cache[deviceID]; ok && prev == msg {
		return true
	}
	b.cache[deviceID] = msg
	return false
}

func (b *Bus) forget(deviceID string) {
	b.cacheMu.Lock()
	delete(b.cache, deviceID)
	b.cacheMu.Unlock()
}

func (b *Bus) handleCommand(topic string, payload []byte) error {
	deviceID, ok := b.topics.DeviceIDFromCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	on, err := parseCommand(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", deviceID, err)
	}

	ctx, cancel := context.WithTimeout(device.WithSource(b.ctx, device.SourceMQTT), commandTimeout)
	defer cancel()

	if _, err := b.ctrl.Control(ctx, deviceID, on); err != nil {
		return fmt.Errorf("mqtt command for %s: %w", deviceID, err)
	}
	return nil
}

func parseCommand(payload []byte) (bool, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.On == nil {
		return false, fmt.Errorf("%w: missing \"on\"", ErrInvalidCommand)
	}
	return *cmd.On, nil
}

func (b *Bus) logError(msg string, err error, deviceID string) {
	if b.logger != nil {
		b.logger.Warn("statebus: "+msg, "device_id", deviceID, "error", err)
	}
}
