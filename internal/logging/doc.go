// Package logging provides structured logging for entitylock.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent attributes. Lock coordinators log through it so that a run of
// contended critical sections can be reconstructed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Persistent attributes (component, locker, owner)
//   - Level check before argument assembly, so DEBUG logging on hot lock
//     paths costs nothing when disabled
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/entitylock.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	lockLog := logger.WithComponent("entitylock").WithLocker("orders")
//	lockLog.Info("global lock acquired", "entities", 12)
//
// For tests or when logging is disabled, use [NopLogger].
package logging
