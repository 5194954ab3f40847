// Package config handles loading and validating the IR climate bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IRCLIMATE_* environment variables
//   - Per-device defaults (16..30 range, 23 target, raw framing)
//   - Validation of required fields
//
// Security Considerations:
//   - MQTT passwords, InfluxDB tokens and the JWT secret should come from
//     environment variables rather than the file
//
// Usage:
//
//	cfg, err := config.Load("configs/irclimate.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.ID, d.IRTopic)
//	}
package config
