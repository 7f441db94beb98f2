package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
)

// CachedGateway is a read-through caching decorator over a Gateway. Rate and
// category lookups are cached in an in-process LRU tier and, when configured,
// a shared Redis tier; staleness is tolerated per the gateway contract, so
// there is no invalidation path. Negative results are cached too: a missing
// rate stays missing for the duration of a batch.
type CachedGateway struct {
	next       Gateway
	memory     *lru.Cache[string, cachedRate]
	categories *lru.Cache[string, categoryEntry]
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

type cachedRate struct {
	Rate  decimal.Decimal `json:"rate"`
	Found bool            `json:"found"`
}

type categoryEntry struct {
	Category string `json:"category"`
	Found    bool   `json:"found"`
}

// NewCachedGateway wraps next with the LRU tier and, if cfg enables it, the
// Redis tier.
func NewCachedGateway(next Gateway, cfg domain.CacheConfig, logger *logrus.Logger) (*CachedGateway, error) {
	size := cfg.LRUSize
	if size <= 0 {
		size = 4096
	}
	memory, err := lru.New[string, cachedRate](size)
	if err != nil {
		return nil, fmt.Errorf("creating rate cache: %w", err)
	}
	categories, err := lru.New[string, categoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating category cache: %w", err)
	}

	g := &CachedGateway{
		next:       next,
		memory:     memory,
		categories: categories,
		defaultTTL: cfg.DefaultTTL,
		log:        logger,
	}
	if g.defaultTTL == 0 {
		g.defaultTTL = time.Hour
	}

	if cfg.RedisEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		opts.PoolSize = cfg.PoolSize
		opts.PoolTimeout = cfg.PoolTimeout
		opts.MaxRetries = cfg.MaxRetries

		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		g.redis = client
	}

	return g, nil
}

// AncillaryCodes delegates to the wrapped gateway. The full set is loaded
// once per batch by the orchestrator wiring, so it is not cached here.
func (g *CachedGateway) AncillaryCodes(ctx context.Context) (map[string]struct{}, error) {
	return g.next.AncillaryCodes(ctx)
}

// CategoryFor returns the cached category for a code.
func (g *CachedGateway) CategoryFor(ctx context.Context, code string) (string, bool, error) {
	key := "category:" + code
	if entry, ok := g.categories.Get(key); ok {
		return entry.Category, entry.Found, nil
	}
	if g.redis != nil {
		val, err := g.redis.Get(ctx, key).Result()
		if err == nil {
			var entry categoryEntry
			if jsonErr := json.Unmarshal([]byte(val), &entry); jsonErr == nil {
				g.categories.Add(key, entry)
				return entry.Category, entry.Found, nil
			}
			g.redis.Del(ctx, key)
		} else if err != redis.Nil {
			g.log.WithError(err).Debug("Redis category lookup failed, falling through")
		}
	}

	category, found, err := g.next.CategoryFor(ctx, code)
	if err != nil {
		return "", false, err
	}
	entry := categoryEntry{Category: category, Found: found}
	g.categories.Add(key, entry)
	if g.redis != nil {
		if data, jsonErr := json.Marshal(entry); jsonErr == nil {
			if err := g.redis.Set(ctx, key, data, g.defaultTTL).Err(); err != nil {
				g.log.WithError(err).Debug("Failed to cache category")
			}
		}
	}
	return category, found, nil
}

// PPORate returns the cached contracted rate for (tin, code, modifier).
func (g *CachedGateway) PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error) {
	normalized, ok := NormalizeTIN(tin)
	if !ok {
		return decimal.Zero, false, nil
	}
	key := fmt.Sprintf("ppo:%s:%s:%s", normalized, code, modifier)
	if cached, ok := g.lookup(ctx, key); ok {
		return cached.Rate, cached.Found, nil
	}

	rate, found, err := g.next.PPORate(ctx, normalized, code, modifier)
	if err != nil {
		return decimal.Zero, false, err
	}
	g.store(ctx, key, cachedRate{Rate: rate, Found: found})
	return rate, found, nil
}

// OTARate returns the cached one-time-agreement rate for (orderID, code).
func (g *CachedGateway) OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error) {
	key := fmt.Sprintf("ota:%s:%s", orderID, code)
	if cached, ok := g.lookup(ctx, key); ok {
		return cached.Rate, cached.Found, nil
	}

	rate, found, err := g.next.OTARate(ctx, orderID, code)
	if err != nil {
		return decimal.Zero, false, err
	}
	g.store(ctx, key, cachedRate{Rate: rate, Found: found})
	return rate, found, nil
}

// Provider delegates to the wrapped gateway; provider rows are read once per
// claim and are not worth a cache slot.
func (g *CachedGateway) Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error) {
	return g.next.Provider(ctx, orderID)
}

// Order delegates to the wrapped gateway.
func (g *CachedGateway) Order(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	return g.next.Order(ctx, orderID)
}

// Close releases the Redis client if one was configured.
func (g *CachedGateway) Close() error {
	if g.redis != nil {
		return g.redis.Close()
	}
	return nil
}

func (g *CachedGateway) lookup(ctx context.Context, key string) (cachedRate, bool) {
	if entry, ok := g.memory.Get(key); ok {
		return entry, true
	}
	if g.redis == nil {
		return cachedRate{}, false
	}
	val, err := g.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			g.log.WithError(err).Debug("Redis rate lookup failed, falling through")
		}
		return cachedRate{}, false
	}
	var entry cachedRate
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		g.redis.Del(ctx, key)
		return cachedRate{}, false
	}
	g.memory.Add(key, entry)
	return entry, true
}

func (g *CachedGateway) store(ctx context.Context, key string, entry cachedRate) {
	g.memory.Add(key, entry)
	if g.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := g.redis.Set(ctx, key, data, g.defaultTTL).Err(); err != nil {
		g.log.WithError(err).Debug("Failed to cache rate")
	}
}
