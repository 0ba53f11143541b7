// Package mock provides a simulated device.Driver for development and demos.
//
// Addresses use the sim scheme: "sim://kitchen" connects to a simulated
// plug named kitchen, "sim://kitchen?on=true" starts it switched on. Any
// other address fails to connect with ErrUnreachable. Simulated devices
// live in the driver, so two connections to the same address share state.
package mock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/nerrad567/homify-core/internal/device"
)

// Scheme is the address scheme handled by this driver.
const Scheme = "sim"

var (
	// ErrUnreachable is returned for addresses that are not simulated devices.
	ErrUnreachable = errors.New("mock: device unreachable")

	// ErrInjected is returned by operations with an injected failure.
	ErrInjected = errors.New("mock: injected failure")
)

// Driver simulates on/off devices in memory.
type Driver struct {
	logger device.Logger

	mu          sync.Mutex
	devices     map[string]*simDevice
	failStatus  map[string]bool
	failControl map[string]bool
}

type simDevice struct {
	name string
	on   bool
}

// conn is the device.Conn handed out by Driver.
type conn struct {
	address string
	name    string
}

func (c *conn) Address() string { return c.address }

// NewDriver creates a mock driver.
func NewDriver() *Driver {
	return &Driver{
		devices:     make(map[string]*simDevice),
		failStatus:  make(map[string]bool),
		failControl: make(map[string]bool),
	}
}

// SetLogger sets the logger for connection messages.
func (d *Driver) SetLogger(logger device.Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// Protocol returns device.ProtocolMock.
func (d *Driver) Protocol() device.Protocol {
	return device.ProtocolMock
}

// Connect attaches to (creating if needed) the simulated device at address.
func (d *Driver) Connect(_ context.Context, address string, _ device.Credentials) (device.Conn, error) {
	name, on, err := parseAddress(address)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.log("mock connect failed", "address", address, "error", err)
		return nil, err
	}
	if _, exists := d.devices[name]; !exists {
		d.devices[name] = &simDevice{name: name, on: on}
	}
	d.log("mock connected", "address", address)
	return &conn{address: address, name: name}, nil
}

func parseAddress(address string) (name string, on bool, err error) {
	u, err := url.Parse(address)
	if err != nil || u.Scheme != Scheme || u.Host == "" {
		return "", false, fmt.Errorf("%w: %s", ErrUnreachable, address)
	}
	if v := u.Query().Get("on"); v != "" {
		on, err = strconv.ParseBool(v)
		if err != nil {
			return "", false, fmt.Errorf("%w: bad on value %q", ErrUnreachable, v)
		}
	}
	return u.Host, on, nil
}

// Status returns the simulated power state.
func (d *Driver) Status(_ context.Context, c device.Conn) (device.Status, error) {
	mc, err := d.own(c)
	if err != nil {
		return device.Status{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failStatus[mc.name] {
		return device.Status{}, fmt.Errorf("%w: %w: %s", device.ErrStatusFailed, ErrInjected, mc.name)
	}
	return device.Status{On: d.devices[mc.name].on, Reachable: true}, nil
}

// SetPower changes the simulated power state.
func (d *Driver) SetPower(_ context.Context, c device.Conn, on bool) error {
	mc, err := d.own(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failControl[mc.name] {
		return fmt.Errorf("%w: %s", ErrInjected, mc.name)
	}
	d.devices[mc.name].on = on
	return nil
}

// FailStatus makes status reads of the named device fail (or succeed again).
func (d *Driver) FailStatus(name string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failStatus[name] = fail
}

// FailControl makes commands to the named device fail (or succeed again).
func (d *Driver) FailControl(name string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failControl[name] = fail
}

// IsOn reports the simulated state of the named device.
func (d *Driver) IsOn(name string) (on, exists bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[name]
	if !ok {
		return false, false
	}
	return dev.on, true
}

func (d *Driver) own(c device.Conn) (*conn, error) {
	mc, ok := c.(*conn)
	if !ok {
		return nil, fmt.Errorf("%w: %T", device.ErrForeignConn, c)
	}
	return mc, nil
}

// log must be called with d.mu held.
func (d *Driver) log(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}
