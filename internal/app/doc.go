// Package app provides the application service layer.
//
// SnapshotService serves poll snapshots to joining viewers and the state API. It coalesces concurrent
// fetches for the same poll and guards the repository with a circuit breaker.
// Depends on domain interfaces, not concrete implementations.
package app
