package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/tabular"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/pkg/logger"
	"github.com/wonny/marketviews/pkg/metrics"
)

// Store is the in-memory source of record for view observations.
// Writers (Append, Load) are serialized; readers copy under a read lock.
// ⭐ SSOT: every ViewRecord enters the system through this type
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex

	records []contracts.ViewRecord
	version uint64

	validator *validate.Validator
	backend   contracts.RecordBackend
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// LoadResult summarizes a bulk load. A skipped row's Row is its index among
// the backend's data rows; Line is set when the backend is a file.
type LoadResult struct {
	Loaded  int                    `json:"loaded"`
	Skipped []contracts.FieldError `json:"skipped,omitempty"`
	Missing bool                   `json:"missing"`
}

// New creates an empty store. Call Load to read the backend contents.
func New(backend contracts.RecordBackend, validator *validate.Validator, m *metrics.Metrics, log *logger.Logger) *Store {
	return &Store{
		validator: validator,
		backend:   backend,
		metrics:   m,
		log:       log.Component("store").WithField("backend", backend.Name()),
	}
}

// Load replaces the store contents with the backend rows.
// Rows failing validation are skipped and reported; a missing source
// leaves the store empty.
func (s *Store) Load(ctx context.Context) (*LoadResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result := &LoadResult{}

	raw, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, tabular.ErrMissingSource):
		s.log.WithError(err).Warn("source of record not found, starting empty")
		result.Missing = true
		raw = nil
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", s.backend.Name(), err)
	}

	records := make([]contracts.ViewRecord, 0, len(raw))
	for i, row := range raw {
		typed, err := s.validator.Validate([]contracts.RawRecord{row})
		if err != nil {
			var batchErr *contracts.BatchError
			if !errors.As(err, &batchErr) {
				return nil, err
			}
			for _, fe := range batchErr.Errors {
				fe.Row = i
				fe.Line = row.Line
				result.Skipped = append(result.Skipped, fe)
			}
			continue
		}
		records = append(records, typed...)
	}
	result.Loaded = len(records)

	s.mu.Lock()
	s.records = records
	s.version++
	s.mu.Unlock()

	s.metrics.SetStoreRecords(len(records))

	if len(result.Skipped) > 0 {
		s.log.WithFields(map[string]interface{}{
			"loaded":  result.Loaded,
			"skipped": len(result.Skipped),
		}).Warn("invalid rows skipped during load")
	} else {
		s.log.WithField("loaded", result.Loaded).Info("store loaded")
	}

	return result, nil
}

// Append validates and persists a batch. Any invalid record rejects the
// whole batch with a *contracts.BatchError and leaves the store unchanged.
func (s *Store) Append(ctx context.Context, records []contracts.ViewRecord) error {
	normalized, err := s.validator.ValidateRecords(records)
	if err != nil {
		s.metrics.IncrementRejected(s.backend.Name())
		return err
	}
	return s.commit(ctx, normalized)
}

// AppendRaw validates raw candidates and appends them as one batch
func (s *Store) AppendRaw(ctx context.Context, batch []contracts.RawRecord) ([]contracts.ViewRecord, error) {
	records, err := s.validator.Validate(batch)
	if err != nil {
		s.metrics.IncrementRejected(s.backend.Name())
		return nil, err
	}
	if err := s.commit(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) commit(ctx context.Context, records []contracts.ViewRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Append(ctx, records); err != nil {
		return fmt.Errorf("append to %s: %w", s.backend.Name(), err)
	}

	s.mu.Lock()
	next := make([]contracts.ViewRecord, len(s.records), len(s.records)+len(records))
	copy(next, s.records)
	s.records = append(next, records...)
	s.version++
	total := len(s.records)
	s.mu.Unlock()

	s.metrics.AddAppended(s.backend.Name(), len(records))
	s.metrics.SetStoreRecords(total)
	s.log.WithFields(map[string]interface{}{
		"appended": len(records),
		"total":    total,
	}).Info("batch appended")

	return nil
}

// All returns a copy of every record in insertion order
func (s *Store) All() []contracts.ViewRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.ViewRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases on every successful write
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Distinct returns the sorted distinct non-empty values of field
func (s *Store) Distinct(field contracts.Field) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.records, field)
}

// Snapshot returns an immutable view of the current contents
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	records := make([]contracts.ViewRecord, len(s.records))
	copy(records, s.records)
	version := s.version
	s.mu.RUnlock()

	return newSnapshot(records, version, time.Now())
}

// Backend returns the persistence backend name
func (s *Store) Backend() string {
	return s.backend.Name()
}

func distinct(records []contracts.ViewRecord, field contracts.Field) []string {
	seen := make(map[string]bool)
	values := make([]string, 0)
	for _, rec := range records {
		v := rec.Value(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
