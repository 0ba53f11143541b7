package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // respond 404
//	}
var (
	// ErrAddressUnresolved is recorded at startup when a device's address
	// source yields no value. The device is excluded from the live set.
	ErrAddressUnresolved = errors.New("device: address unresolved")

	// ErrConnectFailed is recorded at startup when a driver cannot connect.
	// The device is excluded from the live set.
	ErrConnectFailed = errors.New("device: connect failed")

	// ErrStatusFailed is returned by drivers when a status read fails.
	// The service reports the device as offline rather than failing.
	ErrStatusFailed = errors.New("device: status read failed")

	// ErrCommunication is returned by Control when the driver fails to
	// apply a command.
	ErrCommunication = errors.New("device: communication failure")

	// ErrNotFound is returned when a device is not in the live set, whether
	// or not it is configured.
	ErrNotFound = errors.New("device: not found")

	// ErrUnknownProtocol is returned when no driver handles a device's protocol.
	ErrUnknownProtocol = errors.New("device: unknown protocol")

	// ErrForeignConn is returned by a driver given a connection made by another driver.
	ErrForeignConn = errors.New("device: connection belongs to another driver")

	// ErrInvalidDescriptor is returned when a configured device fails validation.
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")

	// ErrDuplicateDevice is returned when two descriptors share an id.
	ErrDuplicateDevice = errors.New("device: duplicate id")

	// ErrDuplicateDriver is returned when two drivers claim the same protocol.
	ErrDuplicateDriver = errors.New("device: duplicate driver")
)
