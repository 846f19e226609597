package transport

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// New builds the real transport named by cfg.Delivery.
func New(ctx context.Context, cfg Config, opts ...S3Option) (mailqueue.Transport, error) {
	switch cfg.Delivery {
	case DeliveryPostmark:
		t, err := NewPostmarkTransport(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case DeliveryDev, "":
		return NewDevTransport(cfg.DevDir), nil
	case DeliveryS3:
		t, err := NewS3Transport(ctx, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDelivery, cfg.Delivery)
	}
}
