package directory

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedLookup is a read-through Redis cache over a Repository. Only found
// users are cached. Redis failures fall back to the backing repository.
type CachedLookup struct {
	base   Repository
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

func NewCachedLookup(base Repository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedLookup {
	if base == nil {
		panic("directory.NewCachedLookup: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &CachedLookup{base: base, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedLookup) Create(ctx context.Context, u *User) error {
	if err := c.base.Create(ctx, u); err != nil {
		return err
	}
	c.evict(ctx, u.CreatedBy)
	return nil
}

// GetByEmail collapses concurrent misses for the same email into one
// repository call.
func (c *CachedLookup) GetByEmail(ctx context.Context, email string) (*User, error) {
	key := cacheKey(email)
	if u, ok := c.load(ctx, key); ok {
		return u, nil
	}

	// The shared call outlives any single caller's cancellation; each caller
	// still stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		u, err := c.base.GetByEmail(shared, email)
		if err != nil {
			return nil, err
		}
		c.store(shared, key, u)
		return u, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		u := *res.Val.(*User)
		return &u, nil
	}
}

func (c *CachedLookup) load(ctx context.Context, key string) (*User, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("directory cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var u User
	if err := sonic.Unmarshal(data, &u); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return &u, true
}

func (c *CachedLookup) store(ctx context.Context, key string, u *User) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(u)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("directory cache write failed")
	}
}

func (c *CachedLookup) evict(ctx context.Context, email string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(email)).Err()
}

func cacheKey(email string) string {
	return "directory:user:" + NormalizeEmail(email)
}
