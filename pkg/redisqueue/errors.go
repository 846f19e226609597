package redisqueue

import "errors"

var (
	ErrClientNil     = errors.New("redis client cannot be nil")
	ErrInvalidPrefix = errors.New("redis key prefix must not be empty or contain glob characters")
)
