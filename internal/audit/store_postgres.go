package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"iam-sentinel/internal/domain"
)

// PostgresStore persists audit records in PostgreSQL. Decision, risk and
// violation payloads are stored as JSONB alongside the indexed columns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	identity_id TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	decision    JSONB NOT NULL,
	risk        JSONB NOT NULL,
	violations  JSONB NOT NULL,
	explanation TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_identity ON audit_records (identity_id, created_at);
`

// Migrate creates the audit table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, record domain.AuditRecord) error {
	decision, err := json.Marshal(record.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	risk, err := json.Marshal(record.Risk)
	if err != nil {
		return fmt.Errorf("marshal risk: %w", err)
	}
	violations := record.Violations
	if violations == nil {
		violations = []domain.PolicyViolation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_records (id, identity_id, created_at, decision, risk, violations, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.IdentityID, record.Timestamp, decision, risk, violationsJSON, record.Explanation)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity_id, created_at, decision, risk, violations, explanation
		 FROM audit_records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListByIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity_id, created_at, decision, risk, violations, explanation
		 FROM audit_records WHERE identity_id = $1 ORDER BY created_at, id`,
		identityID)
	if err != nil {
		return nil, fmt.Errorf("list audit records by identity: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	for rows.Next() {
		var (
			record     domain.AuditRecord
			decision   []byte
			risk       []byte
			violations []byte
		)
		if err := rows.Scan(&record.ID, &record.IdentityID, &record.Timestamp,
			&decision, &risk, &violations, &record.Explanation); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := json.Unmarshal(decision, &record.Decision); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		if err := json.Unmarshal(risk, &record.Risk); err != nil {
			return nil, fmt.Errorf("unmarshal risk: %w", err)
		}
		if err := json.Unmarshal(violations, &record.Violations); err != nil {
			return nil, fmt.Errorf("unmarshal violations: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
