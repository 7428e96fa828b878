// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the agent loop, the tool executor and the model adapters use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter wrapping zerolog (console or JSON output)
//   - RunLogger adding run/component context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewZerologLogger(logging.ZerologConfig{Level: logging.LogLevelInfo, Pretty: true})
//	ctrl := agent.NewController(catalog, mdl, func(o *agent.Options) { o.Logger = logger })
package logging
