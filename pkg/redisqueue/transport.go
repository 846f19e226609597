package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// Transport is a redis-backed spool.
type Transport struct {
	client    redis.UniversalClient
	namespace string
	scanCount int64
	opts      mailqueue.Options
	log       *slog.Logger
}

var _ mailqueue.RecoverableTransport = (*Transport)(nil)

// New creates a spool storing its keys under cfg.Prefix.
func New(client redis.UniversalClient, cfg Config, opts ...mailqueue.Option) (*Transport, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if cfg.Prefix == "" || strings.ContainsAny(cfg.Prefix, "*?[]\\{}") {
		return nil, ErrInvalidPrefix
	}
	if cfg.ScanBatchSize <= 0 {
		cfg.ScanBatchSize = 500
	}

	o := mailqueue.NewOptions(opts...)
	return &Transport{
		client:    client,
		namespace: "{" + cfg.Prefix + "}:",
		scanCount: cfg.ScanBatchSize,
		opts:      o,
		log:       o.Logger.With(logger.Component("mailqueue"), logger.Transport("redis")),
	}, nil
}

func (t *Transport) MessageLimit() int { return t.opts.MessageLimit }

func (t *Transport) TimeLimit() time.Duration { return t.opts.TimeLimit }

func (t *Transport) Queue() *mailqueue.Queue {
	return mailqueue.NewQueue(t.items)
}

func (t *Transport) Send(ctx context.Context, m mailqueue.Message) error {
	_, err := t.Enqueue(ctx, m)
	return err
}

func (t *Transport) Enqueue(ctx context.Context, m mailqueue.Message) (*mailqueue.Item, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !t.opts.Accepts(m) {
		return nil, nil
	}

	data, err := mailqueue.MarshalMessage(m)
	if err != nil {
		return nil, err
	}

	stem := mailqueue.NewItemID()
	now := t.opts.Clock()

	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, t.key(stem+mailqueue.SuffixQueued), data, 0)
		p.ZAdd(ctx, t.touchedKey(), redis.Z{Score: score(now), Member: stem})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue message: %w", err)
	}

	id := stem + mailqueue.SuffixQueued
	t.log.DebugContext(ctx, "message enqueued", logger.ItemID(id))

	item, err := t.read(ctx, id)
	if errors.Is(err, redis.Nil) {
		return &mailqueue.Item{ID: id, Message: m, State: mailqueue.StateAlreadySent}, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *Transport) Dequeue(ctx context.Context, item mailqueue.Item, real mailqueue.Transport) (bool, error) {
	if real == nil {
		return false, mailqueue.ErrTransportNil
	}

	stem, claimed, err := t.claim(ctx, item)
	if err != nil || !claimed {
		return false, err
	}
	sending := stem + mailqueue.SuffixSending

	data, err := t.client.Get(ctx, t.key(sending)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read claimed message: %w", err)
	}
	msg, err := mailqueue.UnmarshalMessage(t.key(sending), data)
	if err != nil {
		return false, err
	}

	if sendErr := real.Send(logger.WithItemID(ctx, sending), msg); sendErr != nil {
		te := mailqueue.AsTransportError(sendErr)
		record, err := mailqueue.MarshalFailure(mailqueue.NewTransportFailureAt(te, t.opts.Clock()))
		if err != nil {
			return false, errors.Join(te, err)
		}
		if err := t.client.Set(ctx, t.key(stem+mailqueue.SuffixFailure), record, 0).Err(); err != nil {
			return false, errors.Join(te, fmt.Errorf("write failure record: %w", err))
		}
		t.log.WarnContext(ctx, "message delivery failed", logger.ItemID(sending), logger.Error(te))
		return false, te
	}

	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, t.key(sending), t.key(stem+mailqueue.SuffixFailure))
		p.ZRem(ctx, t.touchedKey(), stem)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("remove sent message: %w", err)
	}

	t.log.DebugContext(ctx, "message sent", logger.ItemID(sending))
	return true, nil
}

// claim takes ownership of item and returns its stem.
func (t *Transport) claim(ctx context.Context, item mailqueue.Item) (string, bool, error) {
	stem, suffix, ok := mailqueue.SplitItemID(item.ID)
	if !ok {
		return "", false, fmt.Errorf("%w: %q", mailqueue.ErrInvalidItemID, item.ID)
	}
	sending := t.key(stem + mailqueue.SuffixSending)

	if suffix == mailqueue.SuffixQueued {
		// Recover ages in-flight keys by this score, so it moves before the
		// key does. XX keeps deleted items out of the set.
		err := t.client.ZAddXX(ctx, t.touchedKey(), redis.Z{Score: score(t.opts.Clock()), Member: stem}).Err()
		if err != nil {
			return "", false, fmt.Errorf("touch message: %w", err)
		}
		won, err := t.client.RenameNX(ctx, t.key(stem+mailqueue.SuffixQueued), sending).Result()
		if err != nil {
			if isNoSuchKey(err) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("claim message: %w", err)
		}
		if !won {
			return "", false, nil
		}
		return stem, true, nil
	}

	if t.opts.RetryPolicy == mailqueue.RetryFailedAfterRecover {
		return "", false, nil
	}
	n, err := t.client.Del(ctx, t.key(stem+mailqueue.SuffixFailure)).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim failed message: %w", err)
	}
	if n == 0 {
		return "", false, nil
	}

	if err := t.client.ZAdd(ctx, t.touchedKey(), redis.Z{Score: score(t.opts.Clock()), Member: stem}).Err(); err != nil {
		return "", false, fmt.Errorf("touch message: %w", err)
	}
	return stem, true, nil
}

func (t *Transport) Delete(ctx context.Context, item mailqueue.Item) (bool, error) {
	stem, _, ok := mailqueue.SplitItemID(item.ID)
	if !ok {
		return false, fmt.Errorf("%w: %q", mailqueue.ErrInvalidItemID, item.ID)
	}

	if err := t.client.Del(ctx, t.key(stem+mailqueue.SuffixFailure)).Err(); err != nil {
		return false, fmt.Errorf("delete failure record: %w", err)
	}
	n, err := t.client.Del(ctx, t.key(stem+mailqueue.SuffixQueued), t.key(stem+mailqueue.SuffixSending)).Result()
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	if err := t.client.ZRem(ctx, t.touchedKey(), stem).Err(); err != nil {
		return n > 0, fmt.Errorf("delete message: %w", err)
	}
	return n > 0, nil
}

func (t *Transport) FlushQueue(ctx context.Context, real mailqueue.Transport, opts ...mailqueue.FlushOption) (int, error) {
	if real == nil {
		return 0, mailqueue.ErrTransportNil
	}

	items, err := t.Queue().Items(ctx)
	if err != nil {
		return 0, err
	}
	queued := items[:0]
	for _, item := range items {
		if strings.HasSuffix(item.ID, mailqueue.SuffixQueued) {
			queued = append(queued, item)
		}
	}

	sent, err := mailqueue.Flush(ctx, queued, func(ctx context.Context, item mailqueue.Item) (bool, error) {
		return t.Dequeue(ctx, item, real)
	}, t.opts.ResolveFlushLimits(opts...), t.opts.Clock)

	t.log.InfoContext(ctx, "queue flushed", logger.Count(sent), logger.Error(err))
	return sent, err
}

func (t *Transport) Recover(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return mailqueue.ErrInvalidRecoveryTimeout
	}

	ids, err := t.scan(ctx, mailqueue.SuffixSending)
	if err != nil {
		return err
	}

	now := t.opts.Clock()
	recovered := 0
	for _, id := range ids {
		stem, _, _ := mailqueue.SplitItemID(id)

		touched, err := t.client.ZScore(ctx, t.touchedKey(), stem).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read claim time: %w", err)
		}
		// a missing score means the claim time was lost; treat it as stale
		if err == nil && now.Sub(fromScore(touched)) < timeout {
			continue
		}

		if err := t.client.Del(ctx, t.key(stem+mailqueue.SuffixFailure)).Err(); err != nil {
			return fmt.Errorf("clear failure record: %w", err)
		}
		won, err := t.client.RenameNX(ctx, t.key(id), t.key(stem+mailqueue.SuffixQueued)).Result()
		if err != nil {
			if isNoSuchKey(err) {
				continue
			}
			return fmt.Errorf("recover message: %w", err)
		}
		if !won {
			continue
		}
		if err := t.client.ZAdd(ctx, t.touchedKey(), redis.Z{Score: score(now), Member: stem}).Err(); err != nil {
			return fmt.Errorf("touch message: %w", err)
		}
		recovered++
	}

	if recovered > 0 {
		t.log.InfoContext(ctx, "stale messages recovered", logger.Count(recovered))
	}
	return nil
}

func (t *Transport) items(ctx context.Context) ([]mailqueue.Item, error) {
	ids, err := t.scan(ctx, mailqueue.SuffixQueued, mailqueue.SuffixSending)
	if err != nil {
		return nil, err
	}

	items := make([]mailqueue.Item, 0, len(ids))
	for _, id := range ids {
		item, err := t.read(ctx, id)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (t *Transport) read(ctx context.Context, id string) (mailqueue.Item, error) {
	stem, suffix, _ := mailqueue.SplitItemID(id)

	data, err := t.client.Get(ctx, t.key(id)).Bytes()
	if err != nil {
		return mailqueue.Item{}, err
	}
	msg, err := mailqueue.UnmarshalMessage(t.key(id), data)
	if err != nil {
		return mailqueue.Item{}, err
	}

	item := mailqueue.Item{ID: id, Message: msg, State: mailqueue.StateQueued}
	if suffix == mailqueue.SuffixSending {
		item.State = mailqueue.StateSending
	}

	if s, err := t.client.ZScore(ctx, t.touchedKey(), stem).Result(); err == nil {
		date := fromScore(s)
		item.Date = &date
	} else if !errors.Is(err, redis.Nil) {
		return mailqueue.Item{}, fmt.Errorf("read claim time: %w", err)
	}

	record, err := t.client.Get(ctx, t.key(stem+mailqueue.SuffixFailure)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return mailqueue.Item{}, fmt.Errorf("read failure record: %w", err)
	default:
		f, err := mailqueue.UnmarshalFailure(t.key(stem+mailqueue.SuffixFailure), record)
		if err != nil {
			return mailqueue.Item{}, err
		}
		item.Failure = &f
		item.State = mailqueue.StateFailed
	}
	return item, nil
}

// scan returns the ids of all keys in the namespace ending in one of suffixes.
func (t *Transport) scan(ctx context.Context, suffixes ...string) ([]string, error) {
	var ids []string
	iter := t.client.Scan(ctx, 0, t.namespace+"*", t.scanCount).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), t.namespace)
		for _, suffix := range suffixes {
			if _, s, ok := mailqueue.SplitItemID(id); ok && s == suffix {
				ids = append(ids, id)
				break
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan queue keys: %w", err)
	}
	return ids, nil
}

func (t *Transport) key(id string) string {
	return t.namespace + id
}

func (t *Transport) touchedKey() string {
	return t.namespace + "touched"
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func fromScore(s float64) time.Time {
	return time.UnixMilli(int64(s)).UTC()
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such key")
}
