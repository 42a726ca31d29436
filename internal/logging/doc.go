// Package logging provides a simple leveled logging interface for the
// media converter service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (codec command lines, probe output)
//   - INFO: General operational messages
//   - WARN: Warning conditions (lenient probe failures, cleanup problems)
//   - ERROR: Error conditions (codec failures, storage errors)
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
package logging
