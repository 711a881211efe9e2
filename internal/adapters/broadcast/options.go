package broadcast

import "github.com/okian/taikai/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithPublishBuffer sets how many messages may wait for fan-out.
func WithPublishBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.publishBuffer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
