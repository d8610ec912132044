package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Удалённый код помечается маркером, чтобы запоздалое заполнение кэша его не воскресило
const (
	tombstone    = "deleted"
	tombstoneTTL = time.Minute
)

type CacheRepository interface {
	Get(ctx context.Context, code string) (*models.Link, error)
	// Set перезаписывает ключ, в том числе маркер удаления
	Set(ctx context.Context, link *models.Link, ttl time.Duration) error
	// SetIfAbsent заполняет кэш после промаха; не трогает существующий ключ и маркер удаления
	SetIfAbsent(ctx context.Context, link *models.Link, ttl time.Duration) error
	// Delete заменяет запись маркером удаления на tombstoneTTL
	Delete(ctx context.Context, code string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

// Get возвращает ErrCacheMiss, если ключа нет
func (r *cacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	data, err := r.redis.Client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached link: %w", err)
	}

	if string(data) == tombstone {
		return nil, ErrCacheMiss
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	return &link, nil
}

func (r *cacheRepository) Set(ctx context.Context, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(link.ShortCode), data, ttl).Err()
}

func (r *cacheRepository) SetIfAbsent(ctx context.Context, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.SetNX(ctx, r.key(link.ShortCode), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, code string) error {
	return r.redis.Client.Set(ctx, r.key(code), tombstone, tombstoneTTL).Err()
}

func (r *cacheRepository) key(code string) string {
	return "link:" + code
}
