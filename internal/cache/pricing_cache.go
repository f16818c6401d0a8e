// Package cache keeps computed pricing summaries in Redis.  Entries are keyed
// by partnership version, so a write never has to invalidate anything: the
// next read simply misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// PricingEntry is a cached pricing summary with its entity tag.
type PricingEntry struct {
	Pricing model.PartnershipPricing `json:"pricing"`
	ETag    string                   `json:"etag"`
}

// PricingCache stores PricingEntry values in Redis.  A nil *PricingCache
// or one without a client never hits.
type PricingCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewPricingCache returns a cache writing keys under "pricing:".
func NewPricingCache(rdb *redis.Client, ttl time.Duration) *PricingCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PricingCache{rdb: rdb, ttl: ttl, prefix: "pricing"}
}

// Key names the entry for one partnership version in one language.
func Key(partnershipID string, version int64, lang string) string {
	if lang == "" {
		lang = "-"
	}
	return fmt.Sprintf("%s:v%d:%s", partnershipID, version, lang)
}

// Get returns the entry stored under key.
func (c *PricingCache) Get(ctx context.Context, key string) (PricingEntry, bool) {
	if c == nil || c.rdb == nil {
		return PricingEntry{}, false
	}
	bs, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("pricing-cache: get %s: %v", key, err)
		}
		return PricingEntry{}, false
	}
	var e PricingEntry
	if err := json.Unmarshal(bs, &e); err != nil {
		log.Printf("pricing-cache: decode %s: %v", key, err)
		return PricingEntry{}, false
	}
	return e, true
}

// Set stores e under key.  Failures are logged and otherwise ignored.
func (c *PricingCache) Set(ctx context.Context, key string, e PricingEntry) {
	if c == nil || c.rdb == nil {
		return
	}
	bs, err := json.Marshal(e)
	if err != nil {
		log.Printf("pricing-cache: encode %s: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+":"+key, bs, c.ttl).Err(); err != nil {
		log.Printf("pricing-cache: set %s: %v", key, err)
	}
}
