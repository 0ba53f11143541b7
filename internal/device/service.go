package device

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultRequestTimeout = 5 * time.Second

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Registry    *Registry
	Drivers     *Drivers
	Connections *Connections

	// RequestTimeout bounds each driver call made on behalf of a request.
	RequestTimeout time.Duration

	// Parallelism bounds concurrent status reads in ListAll.
	Parallelism int

	Logger Logger
}

// Service is the request-time facade over the live connections.
// It is safe for concurrent use once all listeners have been added.
type Service struct {
	registry  *Registry
	drivers   *Drivers
	conns     *Connections
	timeout   time.Duration
	parallel  int
	log       Logger
	listeners []Listener
	now       func() time.Time
}

// NewService creates a Service over an initialised Connections table.
func NewService(opts ServiceOptions) *Service {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = defaultParallelism
	}
	return &Service{
		registry: opts.Registry,
		drivers:  opts.Drivers,
		conns:    opts.Connections,
		timeout:  opts.RequestTimeout,
		parallel: opts.Parallelism,
		log:      orNoop(opts.Logger),
		now:      time.Now,
	}
}

// AddListener registers l for status and control results.
// Listeners must be added before the service handles requests.
func (s *Service) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Connected returns the number of live devices.
func (s *Service) Connected() int {
	return s.conns.Len()
}

// ListAll reads the status of every live device.
//
// The result has exactly one entry per live device. A device whose read
// fails is reported offline (Reachable=false, On=false, name suffixed with
// " (ERROR: Offline)"); it never affects other entries and never fails the
// call. Map iteration order carries no meaning.
func (s *Service) ListAll(ctx context.Context) map[string]Entry {
	ids := s.conns.IDs()
	entries := make([]Entry, len(ids))

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, id := range ids {
		g.Go(func() error {
			lc, _ := s.conns.lookup(id)
			entries[i] = s.read(ctx, lc)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Reads never return errors

	out := make(map[string]Entry, len(ids))
	for i, id := range ids {
		out[id] = entries[i]
		s.notifyStatus(ctx, id, entries[i])
	}
	return out
}

// Get reads the status of one live device. It returns ErrNotFound if id is
// not in the live set; a failed read yields an offline entry, not an error.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	lc, ok := s.conns.lookup(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry := s.read(ctx, lc)
	s.notifyStatus(ctx, id, entry)
	return entry, nil
}

// read fetches one device's status, degrading every failure to an offline entry.
func (s *Service) read(ctx context.Context, lc *liveConn) Entry {
	desc, _ := s.registry.Get(lc.deviceID)

	driver, ok := s.drivers.Get(lc.protocol)
	if !ok {
		s.log.Error("no driver for live device", "device_id", lc.deviceID, "protocol", lc.protocol)
		return offlineEntry(desc)
	}

	st, err := s.call(ctx, lc, func(ctx context.Context) (Status, error) {
		return driver.Status(ctx, lc.conn)
	})
	if err != nil {
		s.log.Warn("device status read failed",
			"device_id", lc.deviceID,
			"address", lc.conn.Address(),
			"error", err,
		)
		return offlineEntry(desc)
	}
	if !st.Reachable {
		return offlineEntry(desc)
	}

	return Entry{
		Name:      desc.Name,
		On:        st.On,
		Type:      desc.Class,
		Reachable: true,
	}
}

// Control switches a live device on or off.
//
// Errors:
//   - ErrNotFound: id is not in the live set (unknown, or never connected)
//   - ErrUnknownProtocol: no driver handles the device's protocol
//   - ErrCommunication: the driver failed; the connection is kept
//
// On success the result echoes the requested state; the device is not re-read.
func (s *Service) Control(ctx context.Context, id string, on bool) (ControlResult, error) {
	lc, ok := s.conns.lookup(id)
	if !ok {
		return ControlResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	desc, _ := s.registry.Get(id)

	event := ControlEvent{
		DeviceID: id,
		Name:     desc.Name,
		Class:    desc.Class,
		Protocol: lc.protocol,
		On:       on,
		Source:   SourceFromContext(ctx),
	}

	err := s.setPower(ctx, lc, on)
	event.At = s.now()
	event.Err = err
	s.notifyControl(ctx, event)

	if err != nil {
		return ControlResult{}, err
	}

	s.log.Info("device controlled", "device_id", id, "on", on, "source", event.Source)
	return ControlResult{Name: desc.Name, On: on, Type: desc.Class}, nil
}

func (s *Service) setPower(ctx context.Context, lc *liveConn, on bool) error {
	driver, ok := s.drivers.Get(lc.protocol)
	if !ok {
		return fmt.Errorf("%w: %s (device %s)", ErrUnknownProtocol, lc.protocol, lc.deviceID)
	}

	_, err := s.call(ctx, lc, func(ctx context.Context) (Status, error) {
		return Status{}, driver.SetPower(ctx, lc.conn, on)
	})
	if err != nil {
		s.log.Error("device control failed",
			"device_id", lc.deviceID,
			"address", lc.conn.Address(),
			"on", on,
			"error", err,
		)
		return fmt.Errorf("%w: %s: %w", ErrCommunication, lc.deviceID, err)
	}
	return nil
}

// call runs fn holding the device's lock, under the request timeout.
func (s *Service) call(ctx context.Context, lc *liveConn, fn func(context.Context) (Status, error)) (Status, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return fn(ctx)
}

func (s *Service) notifyStatus(ctx context.Context, id string, entry Entry) {
	for _, l := range s.listeners {
		l.OnStatus(ctx, id, entry)
	}
}

func (s *Service) notifyControl(ctx context.Context, event ControlEvent) {
	for _, l := range s.listeners {
		l.OnControl(ctx, event)
	}
}
