// Package logging provides structured logging for the streaming client.
//
// This package wraps a package-global zap logger with convenience functions
// used by the protocol engine, the side server and the CLI.
//
// # Log Levels
//
//   - Debug: frame headers, control JSON bodies, hex dumps of bad payloads
//   - Info: connection lifecycle, subscription changes
//   - Warn: reported protocol conditions (malformed control, duplicates)
//   - Error: fatal stream errors
//
// # Configuration
//
// Logging is silent unless a level is given or LLCLIENT_LOG_LEVEL is set:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// The dashboard owns the terminal, so it logs to a file instead:
//
//	logging.InitializeToFile("debug", "/tmp/ll-client.log")
//
// # Specialized Logging
//
//	logging.LogConnection(addr, "connected")
//	logging.LogFrame("recv", hdr.ID, hdr.Length)
//	logging.LogControl("send", payload)
//	logging.LogRawBytes("Malformed control payload", payload)
//
// All functions are safe for concurrent use.
package logging
