package redisqueue

// Config holds the redis backend settings.
type Config struct {
	Prefix        string `env:"MAILQUEUE_REDIS_PREFIX" envDefault:"mailqueue"`
	ScanBatchSize int64  `env:"MAILQUEUE_REDIS_SCAN_BATCH" envDefault:"500"`
}
