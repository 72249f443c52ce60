package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

const pendingMarker = "pending"

// IdempotencyRepository keeps replayable responses of mutating requests in Redis.
type IdempotencyRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewIdempotencyRepository constructs the repository. A nil client disables storage.
func NewIdempotencyRepository(client *redis.Client, logger *zap.Logger) *IdempotencyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyRepository{client: client, logger: logger}
}

// Claim marks key as in flight. It returns false when the key is already
// claimed or completed.
func (r *IdempotencyRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

// Get returns the stored response for key. It returns appErrors.ErrCacheMiss
// when nothing is stored and a nil response with no error while the original
// request is still in flight.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*models.StoredResponse, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if string(raw) == pendingMarker {
		return nil, nil
	}
	var stored models.StoredResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal stored response for %s: %w", key, err)
	}
	return &stored, nil
}

// Save replaces the claim with the completed response.
func (r *IdempotencyRepository) Save(ctx context.Context, key string, resp models.StoredResponse, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal stored response for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Release drops a claim so the request may be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *IdempotencyRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
