// Package audit produces and persists the audit trail: one record per
// evaluation, carrying the decision, the inputs that led to it, and a
// human-readable explanation.
package audit

import (
	"context"

	"iam-sentinel/internal/domain"
)

// Store persists audit records. Append-only; records are never updated or
// deleted.
type Store interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	List(ctx context.Context) ([]domain.AuditRecord, error)
	ListByIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error)
}
