package domain

import "errors"

var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("connection send buffer full")
	ErrInvalidFact      = errors.New("invalid fact")
)
