package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
)

const overrideKeyFormat = "overrides:%s"

// OverrideCache stages admin calendar edits before they are persisted to the
// store. It is advisory by contract: reads fail soft, and the remote store
// stays authoritative for anything already synced.
type OverrideCache struct {
	cli    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewOverrideCache(addr string, ttl time.Duration, logger *slog.Logger) *OverrideCache {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	return &OverrideCache{cli: cli, ttl: ttl, logger: logger}
}

// Overrides returns staged overrides keyed by calendar day. A corrupt field
// is skipped; a connection error yields an empty map and an error the caller
// may ignore.
func (c *OverrideCache) Overrides(ctx context.Context, id property.PropertyID) (map[string]availability.Override, error) {
	fields, err := c.cli.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: overrides read: %w", err)
	}
	return decodeOverrides(fields, func(day string, err error) {
		c.logSkip(id, day, err)
	}), nil
}

// decodeOverrides parses raw hash fields into overrides keyed by day. A field
// with a malformed day key or payload is reported through skip and dropped;
// one bad entry must not poison the rest of the staged edits.
func decodeOverrides(fields map[string]string, skip func(day string, err error)) map[string]availability.Override {
	out := make(map[string]availability.Override, len(fields))
	for day, raw := range fields {
		if _, err := daterange.ParseKey(day); err != nil {
			skip(day, err)
			continue
		}
		var o availability.Override
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			skip(day, err)
			continue
		}
		if o.IsZero() {
			continue
		}
		out[day] = o
	}
	return out
}

func (c *OverrideCache) Stage(ctx context.Context, id property.PropertyID, day time.Time, o availability.Override) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("redis: override encode: %w", err)
	}
	key := c.key(id)
	if err := c.cli.HSet(ctx, key, daterange.Key(day), raw).Err(); err != nil {
		return fmt.Errorf("redis: override stage: %w", err)
	}
	if c.ttl > 0 {
		c.cli.Expire(ctx, key, c.ttl)
	}
	return nil
}

// Clear drops a staged override, typically after the edit was written through
// to the store.
func (c *OverrideCache) Clear(ctx context.Context, id property.PropertyID, day time.Time) error {
	return c.cli.HDel(ctx, c.key(id), daterange.Key(day)).Err()
}

func (c *OverrideCache) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *OverrideCache) Close() error {
	return c.cli.Close()
}

func (c *OverrideCache) key(id property.PropertyID) string {
	return fmt.Sprintf(overrideKeyFormat, id)
}

func (c *OverrideCache) logSkip(id property.PropertyID, day string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("skipping corrupt staged override", "property_id", id, "day", day, "error", err)
}

var _ availability.OverrideCache = (*OverrideCache)(nil)
