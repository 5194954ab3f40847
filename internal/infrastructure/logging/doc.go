// Package logging provides structured logging for the IR climate bridge.
//
// It wraps log/slog and stamps every entry with service and version fields.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords, InfluxDB tokens or JWT secrets.
package logging
