// Package logging provides a minimal logging interface and adapters for impromptu.
//
// The Logger interface defines the level methods (Debug, Info, Warn, Error)
// that the engine, the state machine and the tools use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - attribute keys and SanitizeToken for consistent, secret free log lines
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	eng := engine.New(agent, func(o *engine.Options) { o.Logger = logger })
package logging
