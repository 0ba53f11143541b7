package tapo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nerrad567/homify-core/internal/device"
)

// Options configures the Tapo driver.
type Options struct {
	// HTTPClient is shared by every device client. Defaults to a client
	// without its own timeout; calls are bounded by their context.
	HTTPClient *http.Client

	Logger device.Logger
}

// Driver connects to Tapo devices over KLAP.
type Driver struct {
	http   *http.Client
	logger device.Logger
}

// NewDriver creates a Tapo driver.
func NewDriver(opts Options) *Driver {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Driver{http: opts.HTTPClient, logger: opts.Logger}
}

// Protocol returns device.ProtocolTapo.
func (d *Driver) Protocol() device.Protocol {
	return device.ProtocolTapo
}

// Connect performs the KLAP handshake with the device at address.
func (d *Driver) Connect(ctx context.Context, address string, creds device.Credentials) (device.Conn, error) {
	client := NewClient(d.http, address, creds.Username, creds.Password)
	if err := client.Handshake(ctx); err != nil {
		d.logWarn("tapo connect failed", "address", address, "error", err)
		return nil, err
	}
	d.logInfo("tapo connected", "address", address)
	return client, nil
}

// Status reads the device's power state.
func (d *Driver) Status(ctx context.Context, conn device.Conn) (device.Status, error) {
	client, err := clientOf(conn)
	if err != nil {
		return device.Status{}, err
	}
	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return device.Status{}, fmt.Errorf("%w: %w", device.ErrStatusFailed, err)
	}
	return device.Status{On: info.On, Reachable: true}, nil
}

// SetPower switches the device on or off.
func (d *Driver) SetPower(ctx context.Context, conn device.Conn, on bool) error {
	client, err := clientOf(conn)
	if err != nil {
		return err
	}
	return client.SetDeviceOn(ctx, on)
}

func clientOf(conn device.Conn) (*Client, error) {
	client, ok := conn.(*Client)
	if !ok {
		return nil, fmt.Errorf("%w: %T", device.ErrForeignConn, conn)
	}
	return client, nil
}

func (d *Driver) logInfo(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Driver) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
