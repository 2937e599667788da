package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	renditionKeyPrefix = "avatar:rendition:"

	fieldMime = "mime"
	fieldData = "data"
)

// renditionKey builds the cache key for one rendition of one avatar version
func renditionKey(key domain.AvatarKey, version string, size int) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", renditionKeyPrefix, key.Type, key.ID, version, size)
}

// renditionPattern matches every cached rendition of an avatar
func renditionPattern(key domain.AvatarKey) string {
	return fmt.Sprintf("%s%s:%s:*", renditionKeyPrefix, globEscaper.Replace(key.Type), globEscaper.Replace(key.ID))
}

var globEscaper = strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisCacheRepository implements domain.RenditionCache using Redis hashes
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// GetRendition retrieves a cached rendition
func (r *RedisCacheRepository) GetRendition(ctx context.Context, key domain.AvatarKey, version string, size int) (*domain.ImageArtifact, error) {
	return r.Get(ctx, renditionKey(key, version, size))
}

// SetRendition caches a rendition for ttl
func (r *RedisCacheRepository) SetRendition(ctx context.Context, key domain.AvatarKey, version string, size int, image *domain.ImageArtifact, ttl time.Duration) error {
	return r.Set(ctx, renditionKey(key, version, size), image, ttl)
}

// InvalidateRenditions drops every cached rendition of an avatar
func (r *RedisCacheRepository) InvalidateRenditions(ctx context.Context, key domain.AvatarKey) error {
	return r.DeleteByPattern(ctx, renditionPattern(key))
}

// Get retrieves a cached image with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string) (*domain.ImageArtifact, error) {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	data, ok := fields[fieldData]
	if !ok {
		span.SetAttributes(attribute.String("cache.result", "miss"))
		return nil, domain.ErrCacheMiss
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	return &domain.ImageArtifact{
		Data:     []byte(data),
		MimeType: fields[fieldMime],
	}, nil
}

// Set stores an image with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, image *domain.ImageArtifact, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
			attribute.Int("cache.bytes", len(image.Data)),
		),
	)
	defer span.End()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldMime, image.MimeType, fieldData, image.Data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// DeleteByPattern removes keys matching a pattern using SCAN
func (r *RedisCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.DeleteByPattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)),
	)
	defer span.End()

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis scan error: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	span.SetAttributes(attribute.Int("cache.matched_keys", len(keys)))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}
