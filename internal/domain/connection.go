package domain

// ConnID identifies a live connection for the lifetime of the process.
type ConnID uint64

// Conn is the transport-agnostic handle the room registry holds for a member.
//
// Send must not block on network I/O: it either queues the encoded message
// for delivery and returns nil, or reports why the connection can no longer
// receive (ErrConnectionClosed, ErrSlowConsumer). Close is idempotent.
type Conn interface {
	ID() ConnID
	Send(data []byte) error
	Close() error
}
