package audit

import (
	"context"
	"sync"

	"iam-sentinel/internal/domain"
)

// MemoryStore keeps audit records in process memory. The default backend and
// the one unit tests run against.
type MemoryStore struct {
	mu      sync.RWMutex
	records []domain.AuditRecord
}

// NewMemoryStore constructs an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) ListByIdentity(_ context.Context, identityID string) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditRecord
	for _, r := range s.records {
		if r.IdentityID == identityID {
			out = append(out, r)
		}
	}
	return out, nil
}
