// Package cache keeps organizations in redis in front of the database.
// The permission gate reads an organization on every authenticated request,
// so lifecycle lookups go through here.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
)

const keyPrefix = "organization:"

// Client is the subset of redis commands the cache uses; *redis.Client
// satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Organizations is a read-through cache over an OrganizationFinder. Redis
// failures fall back to the finder; they never fail a lookup.
//
// An organization whose invalidation failed is read from the finder until a
// later invalidation succeeds or the ttl lapses, so a stale redis entry never
// outlives a lifecycle change on this instance. Write-backs that raced an
// invalidation are dropped.
type Organizations struct {
	client Client
	next   auth.OrganizationFinder
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	gen   map[string]uint64
	stale map[string]time.Time
}

var (
	_ auth.OrganizationFinder      = (*Organizations)(nil)
	_ auth.OrganizationInvalidator = (*Organizations)(nil)
)

func NewOrganizations(client Client, next auth.OrganizationFinder, ttl time.Duration) (*Organizations, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if next == nil {
		return nil, errors.New("organization finder is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be greater than zero")
	}
	return &Organizations{
		client: client,
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		gen:    make(map[string]uint64),
		stale:  make(map[string]time.Time),
	}, nil
}

// NewClient builds a redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func (c *Organizations) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	gen, bypass := c.observe(id)
	if bypass {
		return c.next.GetOrganization(ctx, id)
	}

	key := keyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var org auth.Organization
		if jerr := json.Unmarshal(raw, &org); jerr == nil {
			return org, nil
		}
		obs.Logger().Warn("organization cache entry unreadable", zap.String("organization_id", id))
	case errors.Is(err, redis.Nil):
	default:
		obs.Logger().Warn("organization cache unavailable", zap.String("organization_id", id), zap.Error(err))
	}

	org, err := c.next.GetOrganization(ctx, id)
	if err != nil {
		return auth.Organization{}, err
	}
	if !c.current(id, gen) {
		return org, nil
	}
	if payload, jerr := json.Marshal(org); jerr == nil {
		if serr := c.client.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			obs.Logger().Debug("organization cache write failed", zap.String("organization_id", id), zap.Error(serr))
		}
	}
	return org, nil
}

// InvalidateOrganization drops the cached copy of id. When redis cannot be
// reached the id is read from the finder until the ttl lapses.
func (c *Organizations) InvalidateOrganization(ctx context.Context, id string) error {
	c.mu.Lock()
	c.gen[id]++
	c.mu.Unlock()

	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.mu.Lock()
		c.stale[id] = c.now().Add(c.ttl)
		c.mu.Unlock()
		return fmt.Errorf("invalidate organization %s: %w", id, err)
	}
	c.mu.Lock()
	delete(c.stale, id)
	c.mu.Unlock()
	return nil
}

// observe returns the invalidation generation of id and whether redis must
// be bypassed for it.
func (c *Organizations) observe(id string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.stale[id]
	if ok && !c.now().Before(until) {
		delete(c.stale, id)
		ok = false
	}
	return c.gen[id], ok
}

func (c *Organizations) current(id string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[id] == gen
}
