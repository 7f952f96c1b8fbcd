package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/cache"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
)

// Well-known keys.
const (
	KeyDefaultPlanCode = "plans.default_code"
)

// LimitKey returns the key holding a per account type profile cap, e.g.
// "limits.agency.visible".
func LimitKey(accountType, kind string) string {
	return "limits." + accountType + "." + kind
}

// Source reads raw configuration values.
type Source interface {
	// Lookup returns the value of key and whether it exists.
	Lookup(ctx context.Context, key string) (any, bool, error)
}

// Config holds settings cache configuration.
type Config struct {
	CacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"5m"`
}

type entry struct {
	value any
	found bool
}

// Settings provides typed, cached lookups over a Source. Cached values may be
// stale for up to the cache TTL.
type Settings struct {
	source Source
	cache  *cache.TTLCache[string, entry]
	logger *slog.Logger
}

type options struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures Settings.
type Option func(*options)

// WithTTL sets how long values are cached.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used to report source failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates Settings over source. Panics if source is nil.
func New(source Source, opts ...Option) *Settings {
	if source == nil {
		panic("settings: Source is required")
	}
	o := &options{ttl: 5 * time.Minute, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return &Settings{
		source: source,
		cache:  cache.NewTTLCache[string, entry](o.ttl, cache.WithClock(o.now)),
		logger: o.logger,
	}
}

// NewFromConfig creates Settings with the cache TTL taken from cfg.
func NewFromConfig(source Source, cfg Config, opts ...Option) *Settings {
	return New(source, append([]Option{WithTTL(cfg.CacheTTL)}, opts...)...)
}

// Lookup returns the cached value of key.
func (s *Settings) Lookup(ctx context.Context, key string) (any, bool, error) {
	e, err := s.cache.GetOrLoad(key, func() (entry, error) {
		v, ok, err := s.source.Lookup(ctx, key)
		if err != nil {
			return entry{}, fmt.Errorf("lookup setting %s: %w", key, err)
		}
		return entry{value: v, found: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return e.value, e.found, nil
}

// String returns key as a string, or def when it is missing or unreadable.
func (s *Settings) String(ctx context.Context, key, def string) string {
	v, ok := s.lookup(ctx, key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return def
		}
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Int returns key as an int, or def when it is missing or not numeric.
func (s *Settings) Int(ctx context.Context, key string, def int) int {
	v, ok := s.lookup(ctx, key)
	if !ok {
		return def
	}
	n, ok := toInt(v)
	if !ok {
		s.logger.WarnContext(ctx, "setting is not an integer", slog.String("key", key), slog.Any("value", v))
		return def
	}
	return n
}

// Bool returns key as a bool, or def when it is missing or not boolean.
func (s *Settings) Bool(ctx context.Context, key string, def bool) bool {
	v, ok := s.lookup(ctx, key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b
		}
	}
	s.logger.WarnContext(ctx, "setting is not a boolean", slog.String("key", key), slog.Any("value", v))
	return def
}

// Invalidate drops key from the cache.
func (s *Settings) Invalidate(key string) {
	s.cache.Invalidate(key)
}

// InvalidateAll empties the cache.
func (s *Settings) InvalidateAll() {
	s.cache.Clear()
}

func (s *Settings) lookup(ctx context.Context, key string) (any, bool) {
	v, ok, err := s.Lookup(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "settings lookup failed", slog.String("key", key), logger.Error(err))
		return nil, false
	}
	return v, ok && v != nil
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	}
	return 0, false
}
