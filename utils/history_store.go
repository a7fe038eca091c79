package utils

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Perceptus-Labs/roomscout/models"
)

// HistoryStore mirrors interaction records into a capped redis list,
// newest at the head.
type HistoryStore struct {
	client *redis.Client
	key    string
	size   int64
}

func NewHistoryStore(client *redis.Client, key string, size int) *HistoryStore {
	if size <= 0 {
		size = 100
	}
	return &HistoryStore{client: client, key: key, size: int64(size)}
}

func (s *HistoryStore) Record(ctx context.Context, record models.InteractionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store interaction record: %w", err)
	}
	return nil
}

// Recent returns up to n stored records, oldest first.
func (s *HistoryStore) Recent(ctx context.Context, n int) ([]models.InteractionRecord, error) {
	if n <= 0 || int64(n) > s.size {
		n = int(s.size)
	}
	raw, err := s.client.LRange(ctx, s.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read interaction records: %w", err)
	}

	records := make([]models.InteractionRecord, len(raw))
	for i, item := range raw {
		var record models.InteractionRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction record: %w", err)
		}
		records[len(raw)-1-i] = record
	}
	return records, nil
}
