package device

import (
	"context"
	"time"
)

// Protocol identifies the driver family a device speaks.
type Protocol string

// Supported protocols.
const (
	ProtocolTapo Protocol = "tapo"
	ProtocolMock Protocol = "mock"
)

// Class is the kind of device, reported to clients as "type".
type Class string

// Device classes.
const (
	ClassLight  Class = "light"
	ClassOutlet Class = "outlet"
)

// validClasses is the set of accepted device classes.
var validClasses = map[Class]bool{
	ClassLight:  true,
	ClassOutlet: true,
}

// Valid reports whether c is a known device class.
func (c Class) Valid() bool {
	return validClasses[c]
}

// Descriptor is the static configuration of one device.
// Descriptors are owned by the Registry and never change after load.
type Descriptor struct {
	ID       string
	Name     string
	Class    Class
	Protocol Protocol

	// AddressSource names where the device's network address comes from;
	// with the default resolver it is an environment variable name.
	AddressSource string
}

// Credentials are the account credentials a protocol uses to authenticate.
type Credentials struct {
	Username string
	Password string
}

// Status is a device's power state as read from the device.
type Status struct {
	On        bool
	Reachable bool
}

// offlineSuffix is appended to the display name of a device whose status read failed.
const offlineSuffix = " (ERROR: Offline)"

// OfflineName returns the display name used for an unreachable device.
func OfflineName(name string) string {
	return name + offlineSuffix
}

// Entry is one device in a ListAll result.
type Entry struct {
	Name      string `json:"name"`
	On        bool   `json:"on"`
	Type      Class  `json:"type"`
	Reachable bool   `json:"reachable"`
}

// offlineEntry builds the degraded entry for a device that could not be read.
func offlineEntry(d Descriptor) Entry {
	return Entry{
		Name: OfflineName(d.Name),
		Type: d.Class,
	}
}

// ControlResult is the acknowledgement of a successful Control call.
// On is the requested state; the device is not read back.
type ControlResult struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
	Type Class  `json:"type"`
}

// ControlEvent describes one control attempt, successful or not.
// It is delivered to every Listener after Control has its result.
type ControlEvent struct {
	DeviceID string
	Name     string
	Class    Class
	Protocol Protocol
	On       bool
	Source   string
	Err      error
	At       time.Time
}

// Command sources recorded on ControlEvent.
const (
	SourceAPI     = "api"
	SourceMQTT    = "mqtt"
	SourceUnknown = "unknown"
)

type sourceKey struct{}

// WithSource returns a context that tags commands issued under it with source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the command source carried by ctx, or SourceUnknown.
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceUnknown
}

// Listener observes the results produced by the Service.
//
// Callbacks run synchronously on the request goroutine after the result
// has been computed. They cannot change the result; slow work should be
// handed off by the listener itself.
type Listener interface {
	OnStatus(ctx context.Context, deviceID string, entry Entry)
	OnControl(ctx context.Context, event ControlEvent)
}

// Logger defines the logging interface used by this package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func orNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
