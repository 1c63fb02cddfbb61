package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/tabular"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/pkg/logger"
)

// Status of a candidate batch
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound   = errors.New("review batch not found")
	ErrNotPending = errors.New("review batch is not pending")
)

// Batch is a candidate batch awaiting a reviewer's decision
type Batch struct {
	ID         string                 `json:"id"`
	Manager    string                 `json:"manager"`
	Source     string                 `json:"source"`
	Status     Status                 `json:"status"`
	Candidates []contracts.RawRecord  `json:"candidates"`
	Errors     []contracts.FieldError `json:"errors"`
	// Raw is the model output the candidates were parsed from
	Raw          string    `json:"raw,omitempty"`
	Appended     int       `json:"appended"`
	RejectReason string    `json:"reject_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Valid reports whether the candidates passed validation
func (b *Batch) Valid() bool {
	return len(b.Errors) == 0
}

func (b *Batch) clone() *Batch {
	c := *b
	c.Candidates = append([]contracts.RawRecord(nil), b.Candidates...)
	c.Errors = append([]contracts.FieldError(nil), b.Errors...)
	return &c
}

// Queue holds batches in memory until approved or rejected.
// Approval is the only path from extraction to the store.
type Queue struct {
	mu      sync.Mutex
	batches map[string]*Batch

	validator *validate.Validator
	appender  contracts.RecordAppender
	log       *logger.Logger
	now       func() time.Time
}

// NewQueue creates an empty queue appending approved batches to appender
func NewQueue(validator *validate.Validator, appender contracts.RecordAppender, log *logger.Logger) *Queue {
	return &Queue{
		batches:   make(map[string]*Batch),
		validator: validator,
		appender:  appender,
		log:       log.Component("review"),
		now:       time.Now,
	}
}

// Submit registers candidates and validates them immediately
func (q *Queue) Submit(manager, source string, candidates []contracts.RawRecord, raw string) *Batch {
	now := q.now()
	b := &Batch{
		ID:         uuid.NewString(),
		Manager:    manager,
		Source:     source,
		Status:     StatusPending,
		Candidates: append([]contracts.RawRecord(nil), candidates...),
		Raw:        raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Errors = q.check(b.Candidates)

	q.mu.Lock()
	q.batches[b.ID] = b
	q.mu.Unlock()

	q.log.WithFields(map[string]interface{}{
		"batch_id":   b.ID,
		"manager":    manager,
		"candidates": len(candidates),
		"errors":     len(b.Errors),
	}).Info("review batch submitted")

	return b.clone()
}

// Get returns a copy of one batch
func (q *Queue) Get(id string) (*Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

// List returns batches with the given status (all when empty), newest first
func (q *Queue) List(status Status) []*Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Batch, 0, len(q.batches))
	for _, b := range q.batches {
		if status == "" || b.Status == status {
			out = append(out, b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update replaces the candidates of a pending batch and revalidates them
func (q *Queue) Update(id string, candidates []contracts.RawRecord) (*Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, err := q.pending(id)
	if err != nil {
		return nil, err
	}

	b.Candidates = append([]contracts.RawRecord(nil), candidates...)
	b.Errors = q.check(b.Candidates)
	b.UpdatedAt = q.now()

	return b.clone(), nil
}

// Approve revalidates and appends the batch atomically. On a schema
// violation the batch stays pending with the errors recorded.
func (q *Queue) Approve(ctx context.Context, id string) (*Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, err := q.pending(id)
	if err != nil {
		return nil, err
	}

	records, err := q.appender.AppendRaw(ctx, b.Candidates)
	if err != nil {
		var batchErr *contracts.BatchError
		if errors.As(err, &batchErr) {
			b.Errors = batchErr.Errors
			b.UpdatedAt = q.now()
		}
		return b.clone(), fmt.Errorf("approve %s: %w", id, err)
	}

	b.Status = StatusApproved
	b.Errors = nil
	b.Appended = len(records)
	b.UpdatedAt = q.now()

	q.log.WithFields(map[string]interface{}{
		"batch_id": id,
		"appended": len(records),
	}).Info("review batch approved")

	return b.clone(), nil
}

// Reject closes a pending batch without touching the store
func (q *Queue) Reject(id, reason string) (*Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, err := q.pending(id)
	if err != nil {
		return nil, err
	}

	b.Status = StatusRejected
	b.RejectReason = reason
	b.UpdatedAt = q.now()

	q.log.WithField("batch_id", id).Info("review batch rejected")
	return b.clone(), nil
}

// Export writes the batch as views rows, with a header when header is set.
// Only a fully valid batch can be exported.
func (q *Queue) Export(id string, w io.Writer, header bool) error {
	b, err := q.Get(id)
	if err != nil {
		return err
	}

	records, err := q.validator.Validate(b.Candidates)
	if err != nil {
		return err
	}

	if header {
		return tabular.WriteViews(w, records)
	}
	return tabular.AppendRows(w, records)
}

// Purge drops closed batches last updated before cutoff
func (q *Queue) Purge(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, b := range q.batches {
		if b.Status != StatusPending && b.UpdatedAt.Before(cutoff) {
			delete(q.batches, id)
			n++
		}
	}
	return n
}

func (q *Queue) pending(id string) (*Batch, error) {
	b, ok := q.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != StatusPending {
		return nil, fmt.Errorf("%s is %s: %w", id, b.Status, ErrNotPending)
	}
	return b, nil
}

func (q *Queue) check(candidates []contracts.RawRecord) []contracts.FieldError {
	_, err := q.validator.Validate(candidates)
	var batchErr *contracts.BatchError
	if errors.As(err, &batchErr) {
		return batchErr.Errors
	}
	return nil
}
