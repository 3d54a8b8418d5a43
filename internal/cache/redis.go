package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/redis/go-redis/v9"
)

const defaultPostTTL = 5 * time.Minute

var ErrCacheMiss = errors.New("cache miss")

func Connect(ctx context.Context, addr string, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// PostCache keeps individual posts in redis. likes_count is part of the cached
// value, so every like toggle must invalidate the entry.
type PostCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPostCache(client *redis.Client, ttl time.Duration) *PostCache {
	if ttl <= 0 {
		ttl = defaultPostTTL
	}
	return &PostCache{client: client, ttl: ttl}
}

func postKey(postID int64) string {
	return fmt.Sprintf("post:%d", postID)
}

func (c *PostCache) Get(ctx context.Context, postID int64) (*models.Post, error) {
	payload, err := c.client.Get(ctx, postKey(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var post models.Post
	if err := json.Unmarshal(payload, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *PostCache) Set(ctx context.Context, post *models.Post) error {
	payload, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, postKey(post.ID), payload, c.ttl).Err()
}

func (c *PostCache) Invalidate(ctx context.Context, postID int64) error {
	return c.client.Del(ctx, postKey(postID)).Err()
}
