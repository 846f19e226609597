package redis

import "errors"

// Errors returned by Connect and Healthcheck. The underlying go-redis error
// is joined to each of them.
var (
	ErrEmptyURL          = errors.New("redis: connection URL is empty")
	ErrInvalidURL        = errors.New("redis: invalid connection URL")
	ErrNotReady          = errors.New("redis: server is not ready")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
