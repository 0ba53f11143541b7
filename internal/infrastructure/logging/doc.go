// Package logging provides structured logging for Homify Core.
//
// It wraps log/slog so every component logs with the same shape:
// JSON in production, text during development, and the default
// fields service=homify and version on every entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log Tapo credentials or MQTT passwords. Device addresses are
// fine to log; the driver logs one line per connection attempt.
package logging
