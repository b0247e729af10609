// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap. Both modes write to stderr so that stdout remains
// reserved for the MCP stdio transport.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("sandbox created", zap.String("owner_id", owner))
package logger
