// Package tapo implements the device.Driver for TP-Link Tapo plugs and bulbs
// using the local KLAP protocol.
//
// # Protocol
//
// KLAP runs over plain HTTP on port 80 of the device:
//
//	client                                      device
//	  │ POST /app/handshake1  local_seed(16)        │
//	  │ ──────────────────────────────────────────▶ │
//	  │ remote_seed(16) || server_hash(32)          │
//	  │ Set-Cookie: TP_SESSIONID=..;TIMEOUT=86400   │
//	  │ ◀────────────────────────────────────────── │
//	  │ POST /app/handshake2  client_hash(32)       │
//	  │ ──────────────────────────────────────────▶ │
//	  │ POST /app/request?seq=N  sig(32) || aes_cbc │
//	  │ ◀─────────────────────────────────────────▶ │
//
// auth_hash is SHA256(SHA1(username) || SHA1(password)). The device proves
// it knows the credentials with server_hash = SHA256(local || remote ||
// auth_hash); a mismatch is reported as ErrAuthFailed. Session keys,
// the IV prefix, the starting sequence number and the signing key are all
// derived from the two seeds and auth_hash.
//
// # Sessions
//
// A session lasts for the TIMEOUT cookie's duration. An expired session,
// or a 401/403 from the device, is discarded and the next call performs a
// fresh handshake. Calls are never retried.
//
// # Thread Safety
//
// A Client serialises its own requests; the KLAP sequence number must
// advance in order.
package tapo
