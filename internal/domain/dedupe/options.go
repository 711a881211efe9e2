package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithInitialSize presizes the key set. Values <= 0 are ignored.
func WithInitialSize(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.initialSize = n
		}
	}
}
