// Package config provides application configuration management.
//
// Configuration is read from a YAML file (config.yaml in the working directory
// or ./config), overridden by E2BBOX_* environment variables. The E2B API key
// is also accepted as E2B_API_KEY, from a .env file, or from the OS keyring.
// A missing API key fails validation, so the server refuses to start without
// one.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server transport: %s\n", cfg.Server.Transport)
package config
