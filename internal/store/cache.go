package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"nodebucket/internal/models"
)

// Cache wraps a Store with Redis-backed caching of employee documents.
// Writes go straight to the wrapped store and evict the cached document.
//
// Every eviction bumps a per-employee generation counter. A read-through fill
// is only written if the generation it observed before reading the backing
// store is still current.
type Cache struct {
	Store
	redis *redis.Client
	ttl   time.Duration

	mu sync.Mutex
	// employees whose last eviction failed; bypassed until one succeeds
	pending map[int64]struct{}
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("store.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	return &Cache{
		Store:   base,
		redis:   client,
		ttl:     ttl,
		pending: make(map[int64]struct{}),
	}
}

type bypassCacheKey struct{}

// WithoutCache returns a context whose lookups skip any cache and read the
// backing store directly.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassCacheKey{}, true)
}

// CacheBypassed reports whether ctx was created by WithoutCache.
func CacheBypassed(ctx context.Context) bool {
	bypass, _ := ctx.Value(bypassCacheKey{}).(bool)
	return bypass
}

// FindEmployee serves the employee from Redis when possible and fills the
// cache from the wrapped store on a miss.
func (c *Cache) FindEmployee(ctx context.Context, empID int64, proj Projection) (*models.Employee, error) {
	if c.redis == nil || CacheBypassed(ctx) || !c.settle(ctx, empID) {
		return c.Store.FindEmployee(ctx, empID, proj)
	}

	if employee, ok := c.loadEmployee(ctx, empID); ok {
		return project(employee, proj), nil
	}

	gen, genErr := c.generation(ctx, c.redis, empID)

	employee, err := c.Store.FindEmployee(ctx, empID, AllFields)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		c.storeEmployee(ctx, employee, gen)
	}
	return project(employee, proj), nil
}

// PushTask appends to the wrapped store and evicts the cached document.
func (c *Cache) PushTask(ctx context.Context, empID int64, task models.Task) (UpdateResult, error) {
	res, err := c.Store.PushTask(ctx, empID, task)
	if err != nil {
		return res, err
	}

	c.evict(ctx, empID)
	return res, nil
}

// ReplaceTasks replaces both lists in the wrapped store and evicts the cached document.
func (c *Cache) ReplaceTasks(ctx context.Context, empID int64, todo, done []models.Task) (UpdateResult, error) {
	res, err := c.Store.ReplaceTasks(ctx, empID, todo, done)
	if err != nil {
		return res, err
	}

	c.evict(ctx, empID)
	return res, nil
}

// SeedEmployees seeds the wrapped store and evicts every seeded employee.
func (c *Cache) SeedEmployees(ctx context.Context, employees []models.Employee) (int, error) {
	n, err := c.Store.SeedEmployees(ctx, employees)
	if err != nil {
		return n, err
	}

	for _, e := range employees {
		c.evict(ctx, e.EmpID)
	}
	return n, nil
}

// Ping checks both the wrapped store and Redis.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return err
	}
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close closes the wrapped store and the Redis client.
func (c *Cache) Close() error {
	err := c.Store.Close()
	if c.redis != nil {
		err = errors.Join(err, c.redis.Close())
	}
	return err
}

func (c *Cache) loadEmployee(ctx context.Context, empID int64) (*models.Employee, bool) {
	data, err := c.redis.Get(ctx, employeeCacheKey(empID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, employeeCacheKey(empID)).Err()
		}
		return nil, false
	}
	var employee models.Employee
	if err := json.Unmarshal(data, &employee); err != nil {
		_ = c.redis.Del(ctx, employeeCacheKey(empID)).Err()
		return nil, false
	}
	return &employee, true
}

// storeEmployee caches the document only if no eviction happened since gen
// was read.
func (c *Cache) storeEmployee(ctx context.Context, employee *models.Employee, gen int64) {
	if c.ttl == 0 {
		return
	}
	data, err := json.Marshal(employee)
	if err != nil {
		return
	}

	genKey := generationCacheKey(employee.EmpID)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx, employee.EmpID)
		if err != nil || current != gen {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, employeeCacheKey(employee.EmpID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *Cache) generation(ctx context.Context, r stringGetter, empID int64) (int64, error) {
	gen, err := r.Get(ctx, generationCacheKey(empID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// evict drops the cached document and bumps its generation atomically. A
// failed eviction is remembered so reads bypass Redis until a retry succeeds.
func (c *Cache) evict(ctx context.Context, empID int64) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationCacheKey(empID))
		pipe.Del(ctx, employeeCacheKey(empID))
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.pending[empID] = struct{}{}
		return
	}
	delete(c.pending, empID)
}

// settle retries a failed eviction and reports whether Redis may be used
// for empID.
func (c *Cache) settle(ctx context.Context, empID int64) bool {
	c.mu.Lock()
	_, stale := c.pending[empID]
	c.mu.Unlock()
	if !stale {
		return true
	}

	c.evict(ctx, empID)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, stale = c.pending[empID]
	return !stale
}

func employeeCacheKey(empID int64) string {
	return "employee:" + strconv.FormatInt(empID, 10)
}

func generationCacheKey(empID int64) string {
	return employeeCacheKey(empID) + ":gen"
}
