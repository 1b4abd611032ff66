// Package logging provides structured logging for the wifiportal firmware.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the portal. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (DNS replies, per-request traces)
//   - Info: Normal operations (lifecycle transitions, joins, scans)
//   - Warn: Non-fatal issues (malformed datagrams, join failures)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Station connected",
//	    zap.String("ssid", "HomeNet"),
//	    zap.String("station_ip", "10.0.0.17"),
//	)
//
// # Configuration
//
// Initialize logging at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the WIFIPORTAL_LOG_LEVEL environment variable is
// consulted; if that is unset too, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
