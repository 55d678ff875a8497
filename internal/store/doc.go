// Package store provides durable local storage for the bridge's entities:
// groups, users, connectors, filters, routes and interceptors, plus the
// journal of coordinated operations.
//
// # Dialects
//
// SQLite (mattn/go-sqlite3) is the default; PostgreSQL is reached through
// pgx's database/sql driver. Queries are written once with ? placeholders
// and rebound for PostgreSQL.
//
// # Invariants
//
//   - Natural keys (gid, username, cid, fid) are unique; a clash is
//     ErrConflict.
//   - Route and interceptor order is unique per nature.
//   - Route connectors keep their position; position 0 is the connector
//     Default and Static routes use.
//   - Connectors and filters referenced by a rule cannot be deleted.
//   - Passwords pass through the Sealer before they reach the database.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
