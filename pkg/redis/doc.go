// Package redis connects to Redis and provides the distributed order lock
// used by the entitlement engine.
//
// Connect retries the initial ping according to Config. OrderLocker takes a
// key with SET NX PX and a random token; its release runs a Lua script that
// deletes the key only while the token still matches.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewOrderLocker(client, redis.WithPrefix(cfg.LockPrefix))
//	engine := entitlement.NewEngine(entitlement.Dependencies{Locker: locker, ...})
//
// Healthcheck wraps a ping for readiness probes.
package redis
