// Package device is the device abstraction and connection layer of Homify Core.
//
// It owns four things:
//
//   - Driver: the per-protocol adapter interface (connect, status, set power).
//     Implementations live under internal/bridges.
//   - Registry: the static, ordered set of configured devices.
//   - Manager: the one-shot startup step that connects every configured
//     device and freezes the result into a Connections table.
//   - Service: the request-time facade used by the HTTP API and the MQTT
//     command intake.
//
// # Architecture
//
//	┌──────────┐   Initialize (once)   ┌─────────────┐
//	│ Registry │ ────────────────────▶ │ Connections │  frozen after startup
//	└──────────┘        Manager        └──────┬──────┘
//	                                          │
//	                                   ┌──────▼──────┐     ┌───────────┐
//	      HTTP / MQTT ───────────────▶ │   Service   │ ──▶ │ Listeners │
//	                                   └──────┬──────┘     └───────────┘
//	                                          │ Drivers
//	                                   ┌──────▼──────┐
//	                                   │ tapo / mock │
//	                                   └─────────────┘
//
// # Failure model
//
// Devices fail one at a time, never globally. A device whose address cannot
// be resolved, or whose handshake fails, is left out of the Connections
// table for the lifetime of the process. A status read that fails produces
// an offline entry instead of an error. A control command that fails is
// returned to the caller as ErrCommunication and the connection is kept.
// Nothing is retried and nothing is evicted.
//
// # Usage
//
//	registry, err := device.NewRegistry(descriptors)
//	if err != nil {
//	    return err
//	}
//	drivers, err := device.NewDrivers(tapo.NewDriver(tapo.Options{}), mock.NewDriver())
//	if err != nil {
//	    return err
//	}
//
//	conns := device.NewManager(device.ManagerOptions{
//	    Registry:    registry,
//	    Drivers:     drivers,
//	    Credentials: map[device.Protocol]device.Credentials{device.ProtocolTapo: creds},
//	}).Initialize(ctx)
//	defer conns.Close()
//
//	svc := device.NewService(device.ServiceOptions{
//	    Registry:    registry,
//	    Drivers:     drivers,
//	    Connections: conns,
//	})
//	entries := svc.ListAll(ctx)
package device
