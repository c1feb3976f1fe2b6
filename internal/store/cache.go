package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// fillScript stores a tenant only while its generation is unchanged since the
// database read that produced it.
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '' end
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// TenantCache is a read-through cache of tenant rows. Cache failures are
// logged and treated as misses.
//
// Every write bumps a per-tenant generation before dropping the entry, and a
// read only fills the cache if the generation it saw before querying the
// database is still current. A slow read can therefore never re-cache a row
// older than the latest write.
type TenantCache struct {
	redis RedisClient
	ttl   time.Duration
}

func NewTenantCache(client RedisClient, ttl time.Duration) *TenantCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TenantCache{redis: client, ttl: ttl}
}

func tenantKey(id string) string {
	return fmt.Sprintf("tenant:%s", id)
}

func generationKey(id string) string {
	return fmt.Sprintf("tenant:%s:gen", id)
}

// Get returns the cached tenant and whether it was found
func (c *TenantCache) Get(ctx context.Context, id string) (*model.Tenant, bool) {
	cached, err := c.redis.Get(ctx, tenantKey(id)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("tenant_id", id).Msg("Tenant cache read failed")
		}
		return nil, false
	}
	tenant := &model.Tenant{}
	if err := json.Unmarshal([]byte(cached), tenant); err != nil {
		return nil, false
	}
	return tenant, true
}

// Generation returns the tenant's current write generation. It must be read
// before the database query whose result is passed to Fill. ok is false when
// the cache is unreachable, in which case the read must not be cached.
func (c *TenantCache) Generation(ctx context.Context, id string) (gen string, ok bool) {
	gen, err := c.redis.Get(ctx, generationKey(id)).Result()
	if err == redis.Nil {
		return "", true
	}
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", id).Msg("Tenant cache generation read failed")
		return "", false
	}
	return gen, true
}

// Fill caches tenant if no write happened since gen was read
func (c *TenantCache) Fill(ctx context.Context, tenant *model.Tenant, gen string) bool {
	data, err := json.Marshal(tenant)
	if err != nil {
		return false
	}
	keys := []string{tenantKey(tenant.ID), generationKey(tenant.ID)}
	stored, err := fillScript.Run(ctx, c.redis, keys, gen, string(data), c.ttl.Milliseconds()).Int()
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("Tenant cache write failed")
		return false
	}
	return stored == 1
}

// Invalidate bumps the tenant's generation and drops the cached entry
func (c *TenantCache) Invalidate(ctx context.Context, id string) {
	if err := c.redis.Incr(ctx, generationKey(id)).Err(); err != nil {
		log.Warn().Err(err).Str("tenant_id", id).Msg("Tenant cache generation bump failed")
	}
	if err := c.redis.Del(ctx, tenantKey(id)).Err(); err != nil {
		log.Warn().Err(err).Str("tenant_id", id).Msg("Tenant cache invalidation failed")
	}
}

func (c *TenantCache) Close() error {
	return c.redis.Close()
}
