// Package redis connects to the Redis server used by the redis queue backend.
//
// It wraps github.com/redis/go-redis/v9 and adds:
//
//   - Connect, which retries the initial ping using the supplied Config.
//   - Healthcheck, a probe usable by the worker or a readiness endpoint.
//
// Config fields are populated from the environment by pkg/config.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := redis.Healthcheck(client)(ctx); err != nil {
//	    // redis is not healthy
//	}
//
// # Errors
//
// Sentinel errors (ErrNotReady, ErrInvalidURL, ...)
// are joined with the underlying go-redis error, so both errors.Is checks work.
package redis
