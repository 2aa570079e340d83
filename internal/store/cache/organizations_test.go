package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"bizadmin.org/internal/auth"
)

type fakeRedis struct {
	mu         sync.Mutex
	values     map[string]string
	failing    bool
	delFailing bool
	sets       int
}

var errDown = errors.New("connection refused")

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return redis.NewStringResult("", errDown)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return redis.NewStatusResult("", errDown)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.sets++
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing || f.delFailing {
		return redis.NewIntResult(0, errDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingFinder struct {
	org    auth.Organization
	err    error
	calls  int
	during func()
}

func (c *countingFinder) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	c.calls++
	if c.during != nil {
		c.during()
	}
	if c.err != nil {
		return auth.Organization{}, c.err
	}
	org := c.org
	org.ID = id
	return org, nil
}

func TestReadThrough(t *testing.T) {
	rdb := newFakeRedis()
	deleted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	finder := &countingFinder{org: auth.Organization{Name: "Acme", DeletedAt: &deleted}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}

	for i := 0; i < 3; i++ {
		org, err := c.GetOrganization(context.Background(), "org_1")
		if err != nil {
			t.Fatalf("GetOrganization: %v", err)
		}
		if !org.IsDeleted() || !org.DeletedAt.Equal(deleted) {
			t.Fatalf("deletion timestamp lost through cache: %+v", org)
		}
	}
	if finder.calls != 1 {
		t.Fatalf("expected one store lookup, got %d", finder.calls)
	}

	if err := c.InvalidateOrganization(context.Background(), "org_1"); err != nil {
		t.Fatalf("InvalidateOrganization: %v", err)
	}
	if _, err := c.GetOrganization(context.Background(), "org_1"); err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if finder.calls != 2 {
		t.Fatalf("expected lookup after invalidation, got %d", finder.calls)
	}
}

func TestFallbackWhenRedisDown(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failing = true
	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}

	org, err := c.GetOrganization(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("expected fallback to store, got %v", err)
	}
	if org.Name != "Acme" {
		t.Fatalf("unexpected organization: %+v", org)
	}
	if err := c.InvalidateOrganization(context.Background(), "org_1"); err == nil {
		t.Fatalf("expected invalidation error while redis is down")
	}
}

func TestCorruptEntryIsReplaced(t *testing.T) {
	rdb := newFakeRedis()
	rdb.values[keyPrefix+"org_1"] = "{not json"
	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}
	if _, err := c.GetOrganization(context.Background(), "org_1"); err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if finder.calls != 1 || rdb.sets != 1 {
		t.Fatalf("expected store lookup and rewrite, calls=%d sets=%d", finder.calls, rdb.sets)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	finder := &countingFinder{err: auth.ErrNotFound}
	c, err := NewOrganizations(newFakeRedis(), finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}
	if _, err := c.GetOrganization(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnreachableRedisClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(client, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.GetOrganization(ctx, "org_1"); err != nil {
		t.Fatalf("expected fallback with unreachable redis, got %v", err)
	}
}

func TestNewOrganizationsValidation(t *testing.T) {
	if _, err := NewOrganizations(nil, &countingFinder{}, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewOrganizations(newFakeRedis(), nil, time.Minute); err == nil {
		t.Fatalf("expected error for nil finder")
	}
	if _, err := NewOrganizations(newFakeRedis(), &countingFinder{}, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestFailedInvalidationBypassesCache(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if org, err := c.GetOrganization(ctx, "org_1"); err != nil || org.IsDeleted() {
		t.Fatalf("GetOrganization: %+v %v", org, err)
	}

	deleted := now
	finder.org.DeletedAt = &deleted
	rdb.delFailing = true
	if err := c.InvalidateOrganization(ctx, "org_1"); err == nil {
		t.Fatal("expected invalidation error")
	}

	org, err := c.GetOrganization(ctx, "org_1")
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if !org.IsDeleted() {
		t.Fatal("stale active copy served after a failed invalidation")
	}
	if rdb.sets != 1 {
		t.Fatalf("bypassed lookups must not write back, sets=%d", rdb.sets)
	}

	// Once the ttl lapses the redis entry has expired on its own.
	now = now.Add(time.Minute)
	rdb.values = map[string]string{}
	if org, err := c.GetOrganization(ctx, "org_1"); err != nil || !org.IsDeleted() {
		t.Fatalf("GetOrganization after ttl: %+v %v", org, err)
	}
	if rdb.sets != 2 {
		t.Fatalf("expected caching to resume after ttl, sets=%d", rdb.sets)
	}
}

func TestSuccessfulInvalidationClearsBypass(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}

	rdb.delFailing = true
	if err := c.InvalidateOrganization(ctx, "org_1"); err == nil {
		t.Fatal("expected invalidation error")
	}
	rdb.delFailing = false
	if err := c.InvalidateOrganization(ctx, "org_1"); err != nil {
		t.Fatalf("InvalidateOrganization: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.GetOrganization(ctx, "org_1"); err != nil {
			t.Fatalf("GetOrganization: %v", err)
		}
	}
	if finder.calls != 1 {
		t.Fatalf("expected cache reads after recovery, calls=%d", finder.calls)
	}
}

func TestWriteBackRacingInvalidationIsDropped(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	finder := &countingFinder{org: auth.Organization{Name: "Acme"}}
	c, err := NewOrganizations(rdb, finder, time.Minute)
	if err != nil {
		t.Fatalf("NewOrganizations: %v", err)
	}
	finder.during = func() {
		finder.during = nil
		if err := c.InvalidateOrganization(ctx, "org_1"); err != nil {
			t.Errorf("InvalidateOrganization: %v", err)
		}
	}

	if _, err := c.GetOrganization(ctx, "org_1"); err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if rdb.sets != 0 {
		t.Fatalf("lookup that raced an invalidation was cached, sets=%d", rdb.sets)
	}
	if _, ok := rdb.values[keyPrefix+"org_1"]; ok {
		t.Fatal("stale entry left in redis")
	}
}
