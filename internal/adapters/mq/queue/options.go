package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of pending jobs per resource.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithResources replaces the set of resources the queue accepts jobs for.
func WithResources(resources ...Resource) Option {
	return func(q *InMemoryQueue) {
		if len(resources) > 0 {
			q.resources = resources
		}
	}
}
