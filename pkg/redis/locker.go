package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired lock taken over by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrderLocker implements short-lived exclusive keys with SET NX PX.
type OrderLocker struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// LockerOption configures an OrderLocker.
type LockerOption func(*OrderLocker)

// WithPrefix namespaces every lock key.
func WithPrefix(prefix string) LockerOption {
	return func(l *OrderLocker) {
		l.prefix = prefix
	}
}

// WithLogger sets the logger used for failed releases.
func WithLogger(logger *slog.Logger) LockerOption {
	return func(l *OrderLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewOrderLocker creates a locker on client. Panics if client is nil.
func NewOrderLocker(client redis.UniversalClient, opts ...LockerOption) *OrderLocker {
	if client == nil {
		panic("redis: client is required")
	}
	l := &OrderLocker{client: client, prefix: "lock:", logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock sets key with a random token when it is absent. ok is false when
// another holder owns the key. The returned unlock is safe to call once the
// lock has expired.
func (l *OrderLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Join(ErrLockFailed, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		// the caller's context may already be cancelled; the release must still run
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{full}, token).Err(); err != nil {
			l.logger.WarnContext(rctx, "lock release failed",
				slog.String("key", full),
				logger.Error(err),
			)
		}
	}, true, nil
}
