package transport

import "errors"

var (
	ErrInvalidConfig       = errors.New("transport: invalid config")
	ErrUnknownDelivery     = errors.New("transport: unknown delivery method")
	ErrMalformedMessage    = errors.New("transport: malformed message")
	ErrFailedToLoadAWSConf = errors.New("transport: failed to load aws config")
)
