package policy

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"

	"go-credential-verifier/verifier"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = time.Minute
)

// Cached keeps recently used policies of another store in an LRU cache. Empty
// policies are not cached so a config created elsewhere shows up on the next call.
type Cached struct {
	store verifier.PolicyStore
	cache gcache.Cache
}

var _ verifier.PolicyStore = (*Cached)(nil)

func NewCached(store verifier.PolicyStore, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		store: store,
		cache: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

func (c *Cached) GetActionID(ctx context.Context, userIdentifier, userDefinedData string) (string, error) {
	return c.store.GetActionID(ctx, userIdentifier, userDefinedData)
}

func (c *Cached) GetConfig(ctx context.Context, id string) (verifier.Policy, error) {
	value, err := c.cache.Get(id)
	if err == nil {
		if policy, ok := value.(verifier.Policy); ok {
			return policy, nil
		}
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return verifier.Policy{}, err
	}

	policy, err := c.store.GetConfig(ctx, id)
	if err != nil {
		return verifier.Policy{}, err
	}
	if !policy.IsEmpty() {
		_ = c.cache.Set(id, policy)
	}
	return policy, nil
}

func (c *Cached) SetConfig(ctx context.Context, id string, policy verifier.Policy) (bool, error) {
	created, err := c.store.SetConfig(ctx, id, policy)
	c.cache.Remove(id)
	return created, err
}
