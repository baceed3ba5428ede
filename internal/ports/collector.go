package ports

// Collector produces sensor readings on its own schedule and hands them to
// the agent through the reading queue.
type Collector interface {
	Start(q ReadingQueue) error
	Stop() error
}
