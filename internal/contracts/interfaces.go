package contracts

import "context"

// RecordBackend persists the source of record behind the store
// ⭐ SSOT: storage backend interface (csv file, postgres, memory)
type RecordBackend interface {
	// Name identifies the backend in logs
	Name() string

	// Load returns every persisted row in insertion order.
	// A missing source returns tabular.ErrMissingSource.
	Load(ctx context.Context) ([]RawRecord, error)

	// Append persists a validated batch atomically
	Append(ctx context.Context, records []ViewRecord) error
}

// TextModel turns a prompt into model output text
// ⭐ SSOT: generative model interface used by extraction
type TextModel interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecordAppender accepts raw candidate batches (store, review approvals)
type RecordAppender interface {
	AppendRaw(ctx context.Context, batch []RawRecord) ([]ViewRecord, error)
}
