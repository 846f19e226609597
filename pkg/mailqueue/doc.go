// Package mailqueue provides a durable work queue for outbound email messages.
//
// Messages are spooled by a QueueableTransport and later handed to a "real"
// Transport (an API client, an SMTP relay, a drop bucket) one at a time. The
// package ships two spools:
//
//   - FileTransport: one file per message in a single directory, crash-safe
//   - MemoryTransport: an in-process ordered map, for tests and ephemeral setups
//
// # On-disk layout
//
// Every queued message lives in exactly one of two files:
//
//	<id>.message          queued, waiting for a consumer
//	<id>.message.sending  claimed by a consumer, delivery in flight
//
// A third file, <id>.message.failure, stores the TransportFailure of the last
// delivery attempt. It only exists next to a .sending file.
//
// # Concurrency
//
// Several processes may work on the same directory without any coordination.
// A consumer claims an item by renaming its .message file to .message.sending;
// the rename is atomic, so exactly one consumer wins and every other one sees
// the source vanish and gets false from Dequeue. Losing a race is not an error.
//
// Processes that crash mid-send leave .sending files behind. Recover renames
// every .sending file older than a timeout back to .message so that it can be
// claimed again.
//
// # Usage
//
//	spool, err := mailqueue.NewFileTransport("/var/spool/mailqueue",
//	    mailqueue.WithMessageLimit(100),
//	    mailqueue.WithTimeLimit(time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//
//	item, err := spool.Enqueue(ctx, mailqueue.Message{
//	    Envelope: mailqueue.Envelope{
//	        Sender:     "noreply@example.com",
//	        Recipients: []string{"user@example.com"},
//	    },
//	    Raw: rawMIME,
//	})
//
//	// later, in a cron job or the bundled worker
//	sent, err := spool.FlushQueue(ctx, realTransport)
//
// # Error Handling
//
// Sentinel errors can be checked with errors.Is. Corrupt queue files surface as
// *InvalidPayloadError (ErrSerializedMessageInvalid / ErrSerializedFailureInvalid),
// failed deliveries as *TransportError (ErrTransportFailed).
package mailqueue
