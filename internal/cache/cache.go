package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no cached view exists for the key.
var ErrMiss = errors.New("cache miss")

// Cache keeps rendered public project views in Redis so anonymous reads
// skip the database. Editor reads never go through the cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// GetView loads a cached view into out.
func (c *Cache) GetView(ctx context.Context, projectID string, company *string, out any) error {
	raw, err := c.client.Get(ctx, viewKey(projectID, company)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("get cached view: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode cached view: %w", err)
	}
	return nil
}

// SetView stores a rendered view under the project/company key.
func (c *Cache) SetView(ctx context.Context, projectID string, company *string, view any) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	if err := c.client.Set(ctx, viewKey(projectID, company), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached view: %w", err)
	}
	return nil
}

// InvalidateProject drops every cached view of the project, across all
// company scopes. Called after publish, revert, unpublish and delete.
func (c *Cache) InvalidateProject(ctx context.Context, projectID string) error {
	iter := c.client.Scan(ctx, 0, "view:"+projectID+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("drop cached view: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached views: %w", err)
	}
	return nil
}

func viewKey(projectID string, company *string) string {
	scope := "base"
	if company != nil {
		scope = *company
	}
	return "view:" + projectID + ":" + scope
}
