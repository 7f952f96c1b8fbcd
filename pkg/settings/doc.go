// Package settings exposes typed lookups over runtime configuration parameters,
// such as the default plan code and per account type profile limits.
//
// Values are cached for a TTL (five minutes by default); callers must tolerate
// reading a stale value for that long or call Invalidate after a write.
package settings
