package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
)

// Snapshot is an immutable copy of the store taken at one instant.
// Projections computed from the same snapshot are consistent with each other.
type Snapshot struct {
	Records []contracts.ViewRecord
	Version uint64
	TakenAt time.Time

	once        sync.Once
	fingerprint string
}

func newSnapshot(records []contracts.ViewRecord, version uint64, takenAt time.Time) *Snapshot {
	return &Snapshot{Records: records, Version: version, TakenAt: takenAt}
}

// NewSnapshot wraps records already held by the caller
func NewSnapshot(records []contracts.ViewRecord) *Snapshot {
	return newSnapshot(records, 0, time.Now())
}

// Fingerprint is a content hash of the records (sha256, hex).
// Equal contents give equal fingerprints regardless of version.
func (s *Snapshot) Fingerprint() string {
	s.once.Do(func() {
		h := sha256.New()
		enc := json.NewEncoder(h)
		for _, rec := range s.Records {
			// ViewRecord only holds strings and a time; encoding cannot fail
			_ = enc.Encode(rec)
		}
		s.fingerprint = hex.EncodeToString(h.Sum(nil))
	})
	return s.fingerprint
}

// Len returns the number of records
func (s *Snapshot) Len() int {
	return len(s.Records)
}

// Distinct returns the sorted distinct values of field
func (s *Snapshot) Distinct(field contracts.Field) []string {
	return distinct(s.Records, field)
}

// Filter returns a new snapshot holding the records matching keep
func (s *Snapshot) Filter(keep func(contracts.ViewRecord) bool) *Snapshot {
	out := make([]contracts.ViewRecord, 0, len(s.Records))
	for _, rec := range s.Records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return newSnapshot(out, s.Version, s.TakenAt)
}
