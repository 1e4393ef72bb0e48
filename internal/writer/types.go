package writer

import (
	"time"

	"github.com/google/uuid"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// Source is stored with every row, usually the endpoint URL.
	Source string
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// eventRow represents a row for the connection_events table.
type eventRow struct {
	ID         uuid.UUID
	Source     string
	Kind       string // "received" or "failed"
	EventName  string // Empty for failures
	Headers    []byte // JSONB
	Payload    string
	Error      string // Empty for received messages
	ReceivedAt int64  // Microseconds
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}
