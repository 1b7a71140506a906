package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"bank-accounts/internal/cache"
	"bank-accounts/internal/models"
	"bank-accounts/internal/utils"
)

// invalidations counts cache invalidations made by any service in this
// process. It is bumped before the keys are deleted.
var invalidations atomic.Uint64

// accountCache wraps the optional read cache. A nil cache turns every call
// into a no-op, and cache failures only ever degrade to a store read.
type accountCache struct {
	cache AccountCache
}

func (c accountCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	err := c.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		utils.LogDebug("Cache", "HIT %s", key)
		return true
	case errors.Is(err, redis.Nil):
		utils.LogDebug("Cache", "MISS %s", key)
	default:
		utils.LogWarning("Cache", "Read of %s failed: %v", key, err)
	}
	return false
}

// generation is taken before a store read and handed to set.
func (c accountCache) generation() uint64 {
	return invalidations.Load()
}

// set writes back a value loaded from the store at generation since. An
// invalidation after that point means the value may predate a commit, so
// it is not written, or removed again if the invalidation raced the write.
func (c accountCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration, since uint64) {
	if c.cache == nil {
		return
	}
	if invalidations.Load() != since {
		utils.LogDebug("Cache", "Skip write of %s, invalidated during read", key)
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, ttl); err != nil {
		utils.LogWarning("Cache", "Write of %s failed: %v", key, err)
		return
	}
	if invalidations.Load() != since {
		if err := c.cache.Delete(ctx, key); err != nil {
			utils.LogWarning("Cache", "Removal of stale %s failed: %v", key, err)
		}
	}
}

// invalidate drops the cached views of accounts. It runs synchronously
// after commit so that a caller reading its own write never sees the old
// balance.
func (c accountCache) invalidate(ctx context.Context, accounts ...*models.Account) {
	if c.cache == nil || len(accounts) == 0 {
		return
	}
	invalidations.Add(1)

	keys := make([]string, 0, 2*len(accounts))
	for _, account := range accounts {
		keys = append(keys, cache.AccountKey(account.IDAccount), cache.CustomerAccountsKey(account.IDCustomer))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		utils.LogWarning("Cache", "Invalidation of %v failed: %v", keys, err)
		return
	}
	utils.LogDebug("Cache", "Invalidated %v", keys)
}
