package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults applied when ManagerOptions leaves a field zero.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultParallelism    = 4
)

// AddressResolver maps a descriptor's AddressSource to a network address.
// An empty address counts as unresolved.
type AddressResolver func(source string) (string, bool)

// EnvResolver resolves address sources from environment variables.
func EnvResolver(source string) (string, bool) {
	if source == "" {
		return "", false
	}
	return os.LookupEnv(source)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Registry *Registry
	Drivers  *Drivers

	// Credentials per protocol. A protocol without an entry connects with
	// zero Credentials.
	Credentials map[Protocol]Credentials

	// Resolve defaults to EnvResolver.
	Resolve AddressResolver

	// ConnectTimeout bounds each device's Connect call.
	ConnectTimeout time.Duration

	// Parallelism bounds concurrent Connect calls. 1 connects sequentially.
	Parallelism int

	Logger Logger
}

// Outcome records what happened to one device during Initialize.
// Err is nil for a connected device; otherwise it wraps
// ErrAddressUnresolved, ErrUnknownProtocol or ErrConnectFailed.
type Outcome struct {
	DeviceID string
	Protocol Protocol
	Address  string
	Duration time.Duration
	Err      error
}

// Manager connects every configured device once at startup.
type Manager struct {
	opts ManagerOptions
	log  Logger

	once  sync.Once
	conns *Connections
}

// NewManager creates a Manager. Call Initialize to connect.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Resolve == nil {
		opts.Resolve = EnvResolver
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = defaultParallelism
	}
	return &Manager{opts: opts, log: orNoop(opts.Logger)}
}

// Initialize attempts every registered device exactly once and returns the
// frozen table of live connections. It never fails: devices that cannot be
// connected are logged and left out. Subsequent calls return the same table.
//
// Attempts run concurrently up to Parallelism. Each attempt writes only its
// own slot and the table is assembled in registry order afterwards, so the
// result does not depend on scheduling.
func (m *Manager) Initialize(ctx context.Context) *Connections {
	m.once.Do(func() {
		m.conns = m.initialize(ctx)
	})
	return m.conns
}

func (m *Manager) initialize(ctx context.Context) *Connections {
	descriptors := m.opts.Registry.All()
	outcomes := make([]Outcome, len(descriptors))
	handles := make([]Conn, len(descriptors))

	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)

	for i, d := range descriptors {
		g.Go(func() error {
			handles[i], outcomes[i] = m.connect(ctx, d)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Attempts never return errors

	conns := &Connections{
		byID:     make(map[string]*liveConn, len(descriptors)),
		outcomes: outcomes,
	}
	for i, d := range descriptors {
		if outcomes[i].Err != nil {
			continue
		}
		conns.order = append(conns.order, d.ID)
		conns.byID[d.ID] = &liveConn{
			deviceID: d.ID,
			protocol: d.Protocol,
			conn:     handles[i],
		}
	}

	m.log.Info("device connections initialised",
		"connected", len(conns.order),
		"configured", len(descriptors),
	)
	return conns
}

// connect runs the three startup steps for one device.
func (m *Manager) connect(ctx context.Context, d Descriptor) (Conn, Outcome) {
	out := Outcome{DeviceID: d.ID, Protocol: d.Protocol}

	address, ok := m.opts.Resolve(d.AddressSource)
	if !ok || address == "" {
		out.Err = fmt.Errorf("%w: %s (source %q)", ErrAddressUnresolved, d.ID, d.AddressSource)
		m.log.Warn("device address not set, skipping",
			"device_id", d.ID,
			"address_source", d.AddressSource,
		)
		return nil, out
	}
	out.Address = address

	driver, ok := m.opts.Drivers.Get(d.Protocol)
	if !ok {
		out.Err = fmt.Errorf("%w: %s (device %s)", ErrUnknownProtocol, d.Protocol, d.ID)
		m.log.Warn("no driver for device protocol, skipping",
			"device_id", d.ID,
			"protocol", d.Protocol,
		)
		return nil, out
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := driver.Connect(connectCtx, address, m.opts.Credentials[d.Protocol])
	out.Duration = time.Since(start)
	if err == nil && conn == nil {
		err = errors.New("driver returned no connection")
	}
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", ErrConnectFailed, d.ID, err)
		m.log.Error("device connect failed",
			"device_id", d.ID,
			"protocol", d.Protocol,
			"address", address,
			"error", err,
		)
		return nil, out
	}

	m.log.Info("device connected",
		"device_id", d.ID,
		"protocol", d.Protocol,
		"address", address,
		"duration", out.Duration,
	)
	return conn, out
}

// liveConn is one entry of the Connections table.
// mu serialises driver calls to the device; protocol sessions
// (the Tapo sequence counter, for one) are not safe for concurrent use.
type liveConn struct {
	deviceID string
	protocol Protocol
	conn     Conn
	mu       sync.Mutex
}

// Connections is the frozen table of live device connections.
// It is built once by Manager.Initialize and never modified, so reads
// need no locking.
type Connections struct {
	order    []string
	byID     map[string]*liveConn
	outcomes []Outcome
}

func (c *Connections) lookup(id string) (*liveConn, bool) {
	if c == nil {
		return nil, false
	}
	lc, ok := c.byID[id]
	return lc, ok
}

// Has reports whether id is in the live set.
func (c *Connections) Has(id string) bool {
	_, ok := c.lookup(id)
	return ok
}

// IDs returns the live device ids in registry order.
func (c *Connections) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of live devices.
func (c *Connections) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Outcomes returns the startup result of every configured device, in registry order.
func (c *Connections) Outcomes() []Outcome {
	if c == nil {
		return nil
	}
	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Close closes every connection that implements io.Closer.
// It is meant for process shutdown only; the table is unusable afterwards.
func (c *Connections) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, id := range c.order {
		lc := c.byID[id]
		closer, ok := lc.conn.(io.Closer)
		if !ok {
			continue
		}
		lc.mu.Lock()
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
		lc.mu.Unlock()
	}
	return errors.Join(errs...)
}
