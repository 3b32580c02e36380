// Package logging provides structured logging for the dspw215 tools.
//
// This package wraps a package-global zap logger with convenience functions
// for the logging patterns used by the CLI, the plug client and the HTTP
// bridge.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: HNAP exchanges (truncated bodies), readiness checks, retries
//   - Info: Login results, bridge requests, WebSocket subscribers
//   - Warn: Transport failures that will be retried
//   - Error: Failures surfaced to the user
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Plug switched",
//	    zap.String("host", "192.168.0.20"),
//	    zap.Bool("on", true),
//	)
//
// Components get their own named child logger:
//
//	client.Logger = logging.Named("hnap")
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// DSPW215_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Output Format
//
// Logs are written to stderr in console format so that command output on
// stdout stays machine readable:
//
//	2026-03-02T10:30:45.123+0100  DEBUG  hnap  HNAP exchange
//	  method=GetSocketSettings status_code=200
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
