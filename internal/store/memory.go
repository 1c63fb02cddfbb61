package store

import (
	"context"
	"sync"

	"github.com/wonny/marketviews/internal/contracts"
)

// MemoryBackend keeps rows in process memory
type MemoryBackend struct {
	mu   sync.Mutex
	rows []contracts.RawRecord

	// FailAppend, when set, is returned by Append (tests)
	FailAppend error
}

// NewMemoryBackend creates a backend seeded with rows
func NewMemoryBackend(rows ...contracts.RawRecord) *MemoryBackend {
	return &MemoryBackend{rows: append([]contracts.RawRecord(nil), rows...)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Load(ctx context.Context) ([]contracts.RawRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.RawRecord(nil), b.rows...), nil
}

func (b *MemoryBackend) Append(ctx context.Context, records []contracts.ViewRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailAppend != nil {
		return b.FailAppend
	}
	for _, rec := range records {
		b.rows = append(b.rows, rec.ToRaw())
	}
	return nil
}

// Rows returns the persisted rows
func (b *MemoryBackend) Rows() []contracts.RawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.RawRecord(nil), b.rows...)
}
