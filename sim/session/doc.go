// Package session provides session management for the simulator.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Pluggable persistence (JSON files or SQLite)
//   - Expiration of idle sessions
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters from crypto/rand. Callers may also pick
// their own IDs (letters, digits, '-' and '_'). Lookups are case-insensitive
// and IDs are stored lower-cased.
//
// Persistence:
//
// FilePersistence writes one JSON document per session. SQLitePersistence
// keeps sessions and runs in separate tables so the run history of a session
// survives later runs. Sessions missing from memory are loaded on demand.
//
// Usage:
//
//	store, err := session.NewSQLitePersistence("sessions/autodrive.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store, logger)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("", "crossing", scenario)
//	go manager.RunCleanup(ctx, time.Hour, session.DefaultMaxIdle)
package session
