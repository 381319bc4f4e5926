package audit

import "context"

// Store is an append-only sink for audit events. The memory store keeps
// events queryable for tests and the local API; the Kafka sink ships them to
// the off-chain indexer. Publishers fan out to any number of stores.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// QueryStore extends Store with the read side used by tests and debugging
// endpoints. Remote sinks do not implement it.
type QueryStore interface {
	Store
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
