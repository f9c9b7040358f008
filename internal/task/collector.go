package task

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// RowCollector is a batch.Consumer that accumulates every row it
// receives and renders the accumulated set as a JSON array, per spec.md
// §6's output-format note (serialization format itself is an external
// collaborator concern; JSON is this port's default artifact encoding).
type RowCollector struct {
	mu   sync.Mutex
	rows []shard.Row
}

// NewRowCollector returns an empty collector.
func NewRowCollector() *RowCollector {
	return &RowCollector{}
}

// OnBatch implements batch.Consumer.
func (c *RowCollector) OnBatch(_ context.Context, rows []shard.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
	return nil
}

// Bytes renders the accumulated rows as a JSON array artifact.
func (c *RowCollector) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Marshal(c.rows)
}

// Len reports how many rows have been collected so far.
func (c *RowCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}
