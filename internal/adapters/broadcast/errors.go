package broadcast

import "errors"

// Sentinel errors for the hub.
var (
	ErrHubStopped  = errors.New("broadcast hub stopped")
	ErrBufferFull  = errors.New("broadcast buffer full")
	ErrEncodeTopic = errors.New("broadcast payload not encodable")
)
