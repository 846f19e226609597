// Package transport provides the real transports a mail queue is flushed into.
//
//   - Postmark: delivers through the Postmark transactional API.
//   - Dev: writes every message to a local directory as .eml + .json.
//   - S3: drops raw messages into a pickup bucket for an external relay.
//
// Each of them implements mailqueue.Transport. Delivery errors are returned
// as *mailqueue.TransportError whose Kind names the failure category
// ("postmark.406", "s3.AccessDenied", ...), which the queue stores in the
// failure record of the item.
//
// New picks one of them from Config:
//
//	var cfg transport.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	real, err := transport.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	sent, err := spool.FlushQueue(ctx, real)
package transport
