// Package config handles loading and validating Homify Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Tapo account credentials should be set via HOMIFY_TAPO_USERNAME and
//     HOMIFY_TAPO_PASSWORD rather than written into the config file
//   - Device addresses are never stored in the file; each device names the
//     environment variable that carries its address (address_source)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(cfg.Devices.Registry))
package config
