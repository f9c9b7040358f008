package batch

import (
	"context"

	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Consumer receives normalized row batches during a request, per
// spec.md §6's "onBatch(rows)" contract. Invocations may arrive
// concurrently from multiple shard workers; implementations must be
// safe for concurrent calls or serialize internally.
type Consumer interface {
	OnBatch(ctx context.Context, rows []shard.Row) error
}

// ConsumerFunc adapts a plain function to the Consumer interface.
type ConsumerFunc func(ctx context.Context, rows []shard.Row) error

// OnBatch implements Consumer.
func (f ConsumerFunc) OnBatch(ctx context.Context, rows []shard.Row) error {
	return f(ctx, rows)
}
