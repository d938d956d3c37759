// Package room implements the in-memory room registry: which live connections
// watch which poll.
//
// A room exists only while it has members. Every mutation returns a Change
// carrying the post-mutation member snapshot, so callers can announce the new
// viewer count to exactly the members that were present after the change.
package room
