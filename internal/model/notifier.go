package model

// Notifier broadcasts query-completion events to external consumers.
type Notifier interface {
	// Notify publishes one event for a finished query.
	Notify(resp *AggregateResponse) error

	// Close releases the underlying connection.
	Close()
}
