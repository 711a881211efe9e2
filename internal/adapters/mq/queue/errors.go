package queue

import "errors"

// Sentinel errors returned by Enqueue and Submit.
var (
	ErrBackpressure    = errors.New("mutation queue full")
	ErrClosed          = errors.New("mutation queue closed")
	ErrUnknownResource = errors.New("unknown resource")
)
