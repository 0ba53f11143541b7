package device

import (
	"context"
	"fmt"
	"sort"
)

// Conn is a live, driver-owned connection to one device.
// Only the driver that created a Conn can use it. A Conn that also
// implements io.Closer is closed when the Connections table is closed.
type Conn interface {
	Address() string
}

// Driver adapts one device protocol.
//
// Implementations must report ordinary network failures as returned errors.
// Connect logs one line with the address on success or failure. Status
// errors should wrap ErrStatusFailed. A Conn from another driver is
// rejected with ErrForeignConn.
type Driver interface {
	Protocol() Protocol
	Connect(ctx context.Context, address string, creds Credentials) (Conn, error)
	Status(ctx context.Context, conn Conn) (Status, error)
	SetPower(ctx context.Context, conn Conn, on bool) error
}

// Drivers is the fixed set of available drivers, keyed by protocol.
type Drivers struct {
	byProtocol map[Protocol]Driver
}

// NewDrivers builds the driver set. Two drivers for the same protocol
// is a programming error reported as ErrDuplicateDriver.
func NewDrivers(drivers ...Driver) (*Drivers, error) {
	set := &Drivers{byProtocol: make(map[Protocol]Driver, len(drivers))}
	for _, d := range drivers {
		p := d.Protocol()
		if _, exists := set.byProtocol[p]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDriver, p)
		}
		set.byProtocol[p] = d
	}
	return set, nil
}

// Get returns the driver for protocol p.
func (s *Drivers) Get(p Protocol) (Driver, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.byProtocol[p]
	return d, ok
}

// Protocols lists the registered protocols in sorted order.
func (s *Drivers) Protocols() []Protocol {
	if s == nil {
		return nil
	}
	out := make([]Protocol, 0, len(s.byProtocol))
	for p := range s.byProtocol {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
