package command

import (
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
	"github.com/dmitrymomot/mailqueue/pkg/redisqueue"
	"github.com/dmitrymomot/mailqueue/pkg/transport"
)

// Config aggregates everything the binary reads from the environment.
type Config struct {
	Log        logger.Config
	Queue      mailqueue.Config
	Delivery   transport.Config
	Redis      redis.Config
	RedisQueue redisqueue.Config
}
