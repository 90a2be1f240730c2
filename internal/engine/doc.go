// Package engine implements the varsel variation selection resolver.
//
// Given a product's Variation Index and the shopper's current selection
// (attribute values plus a unit), the engine finds the matching variation,
// answers "would this option still be valid?" probes, and repairs a
// selection that a change made invalid.
//
// ARCHITECTURE:
//
// Single Mutator:
// Every selection change runs synchronously to completion before the next
// one starts. Nothing in the change pipeline suspends, so there is no
// in-flight resolution to supersede and the query cache needs no locking.
//
// Change Pipeline:
//  1. SelectAttribute / SelectUnit validate the target and write it to the store
//  2. ExactMatch (strict, cached) on the new selection
//  3. Unique match: commit, notify observers, schedule detail loading
//  4. Otherwise: build the qualified set of the changed field, pick the
//     closest variation, widen the conflicting fields and re-check
//
// The only asynchronous step is loading the resolved variation's detail.
// Loads run on their own goroutine and hand their result to the event
// queue; Run delivers them to observers from a single goroutine.
//
// CRITICAL PATTERNS:
//
// Index Order:
// Matching results keep the index's declaration order, and repair ties go
// to the earliest candidate. No randomness, no map-order dependence.
//
// Snapshot Probes:
// Validity probes work on cloned selections and never touch the store.
package engine
