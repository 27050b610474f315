// Package registry stores prototype and expression definitions and hands
// them to the diagnostic pipelines by id.
//
// Two implementations share one interface: an in-memory registry for
// tests and one-shot CLI runs, and a SQLite-backed registry for
// long-lived definition sets. Definitions are persisted in their source
// form (weight maps and uncompiled condition trees), so a load yields
// exactly what a store was given.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package registry
