// Package broadcast implements room fan-out and the connection lifecycle.
//
// The Broadcaster encodes a message once and hands it to every member of a room through Conn.Send,
// which only queues (per-connection writer goroutines do the I/O), so a slow viewer never delays its
// siblings or other rooms. Members whose Send fails are evicted after the pass and the new viewer
// count is announced to the survivors.
//
// Lifecycle drives Connecting -> Joined -> Closed for each connection. Eviction and graceful close both
// go through Registry.Leave, whose Changed flag guarantees a connection is removed and announced once.
package broadcast
