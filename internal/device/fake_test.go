package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errFakeNetwork = errors.New("fake: network unreachable")

// fakeConn is the connection handed out by fakeDriver.
type fakeConn struct {
	address string
	closed  atomic.Bool
}

func (c *fakeConn) Address() string { return c.address }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// otherConn belongs to no driver.
type otherConn struct{}

func (otherConn) Address() string { return "elsewhere" }

// fakeDriver is an in-memory Driver with per-address failure injection.
type fakeDriver struct {
	protocol Protocol

	mu           sync.Mutex
	connectErr   map[string]error
	statusErr    map[string]error
	setErr       map[string]error
	state        map[string]bool
	connects     []string
	lastCreds    Credentials
	statusCalls  atomic.Int32
	setCalls     atomic.Int32
	blockConnect bool
	delay        time.Duration

	inflight    map[string]*atomic.Int32
	overlapSeen atomic.Bool
}

func newFakeDriver(p Protocol) *fakeDriver {
	return &fakeDriver{
		protocol:   p,
		connectErr: make(map[string]error),
		statusErr:  make(map[string]error),
		setErr:     make(map[string]error),
		state:      make(map[string]bool),
		inflight:   make(map[string]*atomic.Int32),
	}
}

func (d *fakeDriver) Protocol() Protocol { return d.protocol }

func (d *fakeDriver) Connect(ctx context.Context, address string, creds Credentials) (Conn, error) {
	d.mu.Lock()
	d.connects = append(d.connects, address)
	d.lastCreds = creds
	err := d.connectErr[address]
	block := d.blockConnect
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &fakeConn{address: address}, nil
}

func (d *fakeDriver) conn(c Conn) (*fakeConn, error) {
	fc, ok := c.(*fakeConn)
	if !ok {
		return nil, ErrForeignConn
	}
	return fc, nil
}

func (d *fakeDriver) enter(address string) func() {
	d.mu.Lock()
	counter, ok := d.inflight[address]
	if !ok {
		counter = &atomic.Int32{}
		d.inflight[address] = counter
	}
	delay := d.delay
	d.mu.Unlock()

	if counter.Add(1) > 1 {
		d.overlapSeen.Store(true)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return func() { counter.Add(-1) }
}

func (d *fakeDriver) Status(_ context.Context, c Conn) (Status, error) {
	d.statusCalls.Add(1)
	fc, err := d.conn(c)
	if err != nil {
		return Status{}, err
	}
	defer d.enter(fc.address)()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.statusErr[fc.address]; err != nil {
		return Status{}, errors.Join(ErrStatusFailed, err)
	}
	return Status{On: d.state[fc.address], Reachable: true}, nil
}

func (d *fakeDriver) SetPower(_ context.Context, c Conn, on bool) error {
	d.setCalls.Add(1)
	fc, err := d.conn(c)
	if err != nil {
		return err
	}
	defer d.enter(fc.address)()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setErr[fc.address]; err != nil {
		return err
	}
	d.state[fc.address] = on
	return nil
}

func (d *fakeDriver) failStatus(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statusErr[address] = err
}

func (d *fakeDriver) failSet(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setErr[address] = err
}

// mapResolver resolves address sources from a fixed map.
func mapResolver(m map[string]string) AddressResolver {
	return func(source string) (string, bool) {
		v, ok := m[source]
		return v, ok
	}
}

// recordingListener captures everything the Service reports.
type recordingListener struct {
	mu       sync.Mutex
	statuses map[string]Entry
	controls []ControlEvent
}

func newRecordingListener() *recordingListener {
	return &recordingListener{statuses: make(map[string]Entry)}
}

func (l *recordingListener) OnStatus(_ context.Context, id string, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[id] = e
}

func (l *recordingListener) OnControl(_ context.Context, ev ControlEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.controls = append(l.controls, ev)
}

// fixture wires a registry, a fake tapo driver and a service.
type fixture struct {
	registry *Registry
	driver   *fakeDriver
	drivers  *Drivers
	conns    *Connections
	service  *Service
}

func newFixture(t testing.TB, descriptors []Descriptor, addresses map[string]string, setup func(*fakeDriver)) *fixture {
	t.Helper()

	reg, err := NewRegistry(descriptors)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	drv := newFakeDriver(ProtocolTapo)
	if setup != nil {
		setup(drv)
	}
	drivers, err := NewDrivers(drv)
	if err != nil {
		t.Fatalf("NewDrivers() error = %v", err)
	}

	conns := NewManager(ManagerOptions{
		Registry: reg,
		Drivers:  drivers,
		Resolve:  mapResolver(addresses),
	}).Initialize(context.Background())

	svc := NewService(ServiceOptions{
		Registry:    reg,
		Drivers:     drivers,
		Connections: conns,
	})

	return &fixture{registry: reg, driver: drv, drivers: drivers, conns: conns, service: svc}
}

func tapoLight(id, name string) Descriptor {
	return Descriptor{
		ID:            id,
		Name:          name,
		Class:         ClassLight,
		Protocol:      ProtocolTapo,
		AddressSource: "ADDR_" + id,
	}
}
