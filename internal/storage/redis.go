package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/script"
)

// RedisStorage implements the Storage interface on Redis. Progress documents
// have no TTL: a case stays resumable indefinitely.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance.
func NewRedisStorage(redisURL string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

func progressKey(userID, caseID string) string {
	return "caseprogress:" + userID + ":" + caseID
}

func profileKey(userID string) string {
	return "profile:" + userID
}

const apiKeysKey = "config:api_keys"

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup).
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("Failed to marshal document", "key", key, "error", err)
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := r.client.Set(ctx, key, string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save document", "key", key, "error", err)
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (r *RedisStorage) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadProgress(ctx context.Context, userID, caseID string) (*progress.CaseProgress, error) {
	var doc progress.CaseProgress
	if err := r.get(ctx, progressKey(userID, caseID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *RedisStorage) SaveProgress(ctx context.Context, doc *progress.CaseProgress) error {
	now := time.Now()
	doc.LastUpdated = &now
	return r.set(ctx, progressKey(doc.UserID, doc.CaseID), doc)
}

func (r *RedisStorage) LoadScenario(ctx context.Context, userID string) (*script.Progress, error) {
	var doc script.Progress
	if err := r.get(ctx, progressKey(userID, script.CaseID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *RedisStorage) SaveScenario(ctx context.Context, doc *script.Progress) error {
	now := time.Now()
	doc.LastUpdated = &now
	return r.set(ctx, progressKey(doc.UserID, doc.CaseID), doc)
}

func (r *RedisStorage) LoadProfile(ctx context.Context, userID string) (*progress.Profile, error) {
	var p progress.Profile
	if err := r.get(ctx, profileKey(userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RedisStorage) SaveProfile(ctx context.Context, p *progress.Profile) error {
	return r.set(ctx, profileKey(p.UserID), p)
}

func (r *RedisStorage) GetAPIKeys(ctx context.Context) (map[string]string, error) {
	keys := make(map[string]string)
	if err := r.get(ctx, apiKeysKey, &keys); err != nil {
		if errors.Is(err, ErrNotFound) {
			return keys, nil
		}
		return nil, err
	}
	return keys, nil
}
