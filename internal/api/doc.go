// Package api implements the HTTP REST API and WebSocket server for Homify Core.
//
// Routes:
//
//	GET  /                    banner
//	GET  /api/health          liveness and number of connected devices
//	GET  /api/devices/        every live device keyed by id
//	GET  /api/devices/{id}    one live device
//	POST /api/devices/{id}    {"on": bool}; 404 unknown, 500 on device failure
//	GET  /api/sensors/all     simulated sensor reading
//	GET  /api/audit           recent device commands
//	GET  /api/ws              WebSocket, channel device.state_changed
//	GET  /metrics             Prometheus exposition (when enabled)
//
// Device failures on the read path never become HTTP errors: an unreachable
// device is listed with an "(ERROR: Offline)" name. Command failures are
// reported as a generic 500 and logged in full.
//
// The server is unauthenticated and intended for a trusted home network.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
