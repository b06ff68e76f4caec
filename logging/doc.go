// Package logging provides a minimal logging interface and adapters for the runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RuntimeLogger with component/agent scoping and delivery helpers
//   - ZerologAdapter and a human-friendly console logger built on zerolog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// New picks the backend from a LoggerConfig; the "console" format selects zerolog.
package logging
