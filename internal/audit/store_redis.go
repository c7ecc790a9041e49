package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"iam-sentinel/internal/domain"
)

const (
	auditLogKey = "sentinel:audit:records"
	// Per-identity index so ListByIdentity does not scan the whole log.
	auditIdentityKeyPrefix = "sentinel:audit:identity:"
)

// RedisStore persists audit records in Redis lists. Suitable for distributed
// deployments where multiple instances share an audit trail.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed audit store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, auditLogKey, payload)
	pipe.RPush(ctx, auditIdentityKeyPrefix+record.IdentityID, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]domain.AuditRecord, error) {
	return s.listKey(ctx, auditLogKey)
}

func (s *RedisStore) ListByIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error) {
	return s.listKey(ctx, auditIdentityKeyPrefix+identityID)
}

func (s *RedisStore) listKey(ctx context.Context, key string) ([]domain.AuditRecord, error) {
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	var out []domain.AuditRecord
	for _, item := range raw {
		var record domain.AuditRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("unmarshal audit record: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}
