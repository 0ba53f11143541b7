package tapo

import "errors"

// Domain errors for the Tapo bridge package.
var (
	// ErrHandshakeFailed is returned when a KLAP handshake step is rejected
	// or returns a malformed body.
	ErrHandshakeFailed = errors.New("tapo: handshake failed")

	// ErrAuthFailed is returned when the device's handshake hash does not
	// match the configured credentials.
	ErrAuthFailed = errors.New("tapo: authentication failed")

	// ErrSessionExpired is returned when the device rejects the session.
	// The next call renews it.
	ErrSessionExpired = errors.New("tapo: session expired")

	// ErrDeviceError is returned when the device answers with a non-zero error_code.
	ErrDeviceError = errors.New("tapo: device returned error")

	// ErrInvalidResponse is returned when a response cannot be decrypted or decoded.
	ErrInvalidResponse = errors.New("tapo: invalid response")
)
