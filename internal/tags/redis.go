package tags

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gogotex/gonotes/internal/note"
)

// RedisResolver maps names to ids in a single hash. HSETNX makes creation
// race-free: concurrent resolvers of a new name all read back the first id.
type RedisResolver struct {
	client *redis.Client
	key    string
}

// NewRedisResolver creates a resolver storing tags in the hash at key.
func NewRedisResolver(client *redis.Client, key string) *RedisResolver {
	if key == "" {
		key = "tags:by-name"
	}
	return &RedisResolver{client: client, key: key}
}

func (r *RedisResolver) ResolveOrCreate(ctx context.Context, name string) (note.TagRef, error) {
	if name == "" {
		return note.TagRef{}, ErrEmptyName
	}
	if err := r.client.HSetNX(ctx, r.key, name, newTagID()).Err(); err != nil {
		return note.TagRef{}, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	id, err := r.client.HGet(ctx, r.key, name).Result()
	if err != nil {
		return note.TagRef{}, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	return note.TagRef{ID: id, Name: name}, nil
}
