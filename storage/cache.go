package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tracker-api/domain"
)

type backend interface {
	FetchProjects(ctx context.Context) ([]domain.Project, error)
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchSubTasks(ctx context.Context) ([]domain.SubTask, error)
	FetchUpdates(ctx context.Context) ([]domain.Update, error)
	FetchUsers(ctx context.Context) ([]domain.User, error)

	InsertProject(ctx context.Context, p domain.Project) error
	UpdateProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	InsertSubTask(ctx context.Context, st domain.SubTask) error
	UpdateSubTask(ctx context.Context, st domain.SubTask) error
	DeleteSubTask(ctx context.Context, id string) error
	InsertUpdate(ctx context.Context, u domain.Update) error

	PublishChange(ctx context.Context, ev domain.Event) error
}

const (
	projectsCacheKey = "projects"
	tasksCacheKey    = "tasks"
	subTasksCacheKey = "subtasks"
	updatesCacheKey  = "updates"
	usersCacheKey    = "users"
)

// Cache wraps a Storage instance with Redis-backed caching for the fetch
// operations. Writes pass through and evict the affected collection.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchProjects(ctx context.Context) ([]domain.Project, error) {
	return fetchCached(ctx, c, projectsCacheKey, c.base.FetchProjects)
}

func (c *Cache) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	return fetchCached(ctx, c, tasksCacheKey, c.base.FetchTasks)
}

func (c *Cache) FetchSubTasks(ctx context.Context) ([]domain.SubTask, error) {
	return fetchCached(ctx, c, subTasksCacheKey, c.base.FetchSubTasks)
}

func (c *Cache) FetchUpdates(ctx context.Context) ([]domain.Update, error) {
	return fetchCached(ctx, c, updatesCacheKey, c.base.FetchUpdates)
}

func (c *Cache) FetchUsers(ctx context.Context) ([]domain.User, error) {
	return fetchCached(ctx, c, usersCacheKey, c.base.FetchUsers)
}

func fetchCached[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	if items, ok := loadList[T](ctx, c, key); ok {
		return items, nil
	}
	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	storeList(ctx, c, key, items)
	return items, nil
}

func loadList[T any](ctx context.Context, c *Cache, key string) ([]T, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return items, true
}

func storeList[T any](ctx context.Context, c *Cache, key string, items []T) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func (c *Cache) InsertProject(ctx context.Context, p domain.Project) error {
	if err := c.base.InsertProject(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, projectsCacheKey)
	return nil
}

func (c *Cache) UpdateProject(ctx context.Context, p domain.Project) error {
	if err := c.base.UpdateProject(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, projectsCacheKey)
	return nil
}

func (c *Cache) DeleteProject(ctx context.Context, id string) error {
	if err := c.base.DeleteProject(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, projectsCacheKey)
	return nil
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) InsertSubTask(ctx context.Context, st domain.SubTask) error {
	if err := c.base.InsertSubTask(ctx, st); err != nil {
		return err
	}
	c.evict(ctx, subTasksCacheKey)
	return nil
}

func (c *Cache) UpdateSubTask(ctx context.Context, st domain.SubTask) error {
	if err := c.base.UpdateSubTask(ctx, st); err != nil {
		return err
	}
	c.evict(ctx, subTasksCacheKey)
	return nil
}

func (c *Cache) DeleteSubTask(ctx context.Context, id string) error {
	if err := c.base.DeleteSubTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, subTasksCacheKey)
	return nil
}

func (c *Cache) InsertUpdate(ctx context.Context, u domain.Update) error {
	if err := c.base.InsertUpdate(ctx, u); err != nil {
		return err
	}
	c.evict(ctx, updatesCacheKey)
	return nil
}

func (c *Cache) PublishChange(ctx context.Context, ev domain.Event) error {
	return c.base.PublishChange(ctx, ev)
}
