// Package store provides a SQLite catalog of variation indexes.
//
// The resolver never persists selection state. The store only holds the
// external Variation Index of each product so that it can be imported once
// and served to many product views:
//   - products: one row per product with the index fingerprint
//   - attributes / attribute_values: the attribute catalog
//   - units: the unit-of-measure catalog
//   - variations / variation_attributes: the enumerated combinations
//
// # Ordering
//
// Every catalog row carries the position it had in the index. Reads use
// ORDER BY position, so an index read back from the store has the same
// variation order, and therefore the same matching results and
// fingerprint, as the index that was written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
