// Package cache provides a generic, thread-safe cache with time-based expiry.
//
// TTLCache is used for read-mostly reference data that may be served slightly
// stale, such as configuration parameters and the resolved default plan. Expiry
// is evaluated against an injectable clock so tests can move time explicitly:
//
//	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
//	c := cache.NewTTLCache[string, string](5*time.Minute,
//		cache.WithClock(func() time.Time { return now }),
//	)
//
//	c.Set("plans.default_code", "AMATISTA")
//	v, ok := c.Get("plans.default_code") // "AMATISTA", true
//
//	now = now.Add(5 * time.Minute)
//	_, ok = c.Get("plans.default_code") // false, entry expired
//
// Callers owning the cache invalidate entries explicitly after writes they know
// about (Invalidate, Clear); everything else converges within one TTL.
package cache
