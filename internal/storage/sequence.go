// internal/storage/sequence.go
package storage

import (
	"context"
	"fmt"
	"sync"

	"demand-broker/internal/common/database"
	apperrors "demand-broker/internal/common/errors"
)

// RedisSequencer issues per-owner demand references through Redis INCR,
// so references stay monotonic across daemon restarts.
type RedisSequencer struct {
	client *database.RedisClient
}

func NewRedisSequencer(client *database.RedisClient) *RedisSequencer {
	return &RedisSequencer{client: client}
}

func (s *RedisSequencer) NextDemandReference(ctx context.Context, ownerKey string) (int64, error) {
	ref, err := s.client.Incr(ctx, fmt.Sprintf("demand:ref:%s", ownerKey))
	if err != nil {
		return 0, apperrors.NewDataAccessError("next demand reference", err)
	}
	return ref, nil
}

// MemorySequencer is the in-process counterpart used by tests and the
// Memory store.
type MemorySequencer struct {
	mu   sync.Mutex
	next map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{next: make(map[string]int64)}
}

func (s *MemorySequencer) NextDemandReference(_ context.Context, ownerKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[ownerKey]++
	return s.next[ownerKey], nil
}
