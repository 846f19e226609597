package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// FileTransport spools messages as files in a single directory.
// Any number of processes may share the directory.
type FileTransport struct {
	dir  string
	opts Options
	log  *slog.Logger
}

var _ RecoverableTransport = (*FileTransport)(nil)

// NewFileTransport creates a spool in dir. The directory is created on first write.
func NewFileTransport(dir string, opts ...Option) (*FileTransport, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrDirectoryRequired
	}

	o := NewOptions(opts...)
	return &FileTransport{
		dir:  filepath.Clean(dir),
		opts: o,
		log:  o.Logger.With(logger.Component("mailqueue"), logger.Transport("file")),
	}, nil
}

// Dir returns the spool directory.
func (t *FileTransport) Dir() string { return t.dir }

func (t *FileTransport) MessageLimit() int { return t.opts.MessageLimit }

func (t *FileTransport) TimeLimit() time.Duration { return t.opts.TimeLimit }

func (t *FileTransport) Queue() *Queue {
	return NewQueue(func(context.Context) ([]Item, error) {
		return readDir(t.dir)
	})
}

// Send enqueues m.
func (t *FileTransport) Send(ctx context.Context, m Message) error {
	_, err := t.Enqueue(ctx, m)
	return err
}

func (t *FileTransport) Enqueue(ctx context.Context, m Message) (*Item, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !t.opts.Accepts(m) {
		t.log.DebugContext(ctx, "message rejected by filter",
			slog.String("sender", m.Envelope.Sender))
		return nil, nil
	}

	data, err := MarshalMessage(m)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(t.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}

	name := NewItemID() + SuffixQueued
	if err := writeFileAtomic(t.path(name), data); err != nil {
		return nil, fmt.Errorf("write queue file: %w", err)
	}
	if err := t.touch(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	item, err := t.lookup(name, m)
	if err != nil {
		return nil, err
	}

	t.log.DebugContext(ctx, "message enqueued", logger.ItemID(item.ID), logger.State(item.State))
	return item, nil
}

// lookup reads back a freshly written item. A fast consumer may already
// have claimed or delivered it.
func (t *FileTransport) lookup(name string, m Message) (*Item, error) {
	for _, suffix := range []string{SuffixQueued, SuffixSending} {
		variant, _ := fileVariant(name, suffix)
		item, err := readItem(t.dir, variant)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if item.Message.Equal(m) {
			return &item, nil
		}
	}
	return &Item{ID: name, Message: m, State: StateAlreadySent}, nil
}

func (t *FileTransport) Dequeue(ctx context.Context, item Item, real Transport) (bool, error) {
	if real == nil {
		return false, ErrTransportNil
	}

	sending, claimed, err := t.claim(ctx, item)
	if err != nil || !claimed {
		return false, err
	}

	// the claimed file is authoritative; the snapshot may be stale
	data, err := os.ReadFile(t.path(sending))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read claimed file: %w", err)
	}
	msg, err := UnmarshalMessage(t.path(sending), data)
	if err != nil {
		return false, err
	}

	start := t.opts.Clock()
	if sendErr := real.Send(logger.WithItemID(ctx, sending), msg); sendErr != nil {
		te := AsTransportError(sendErr)
		if err := t.writeFailure(sending, NewTransportFailureAt(te, t.opts.Clock())); err != nil {
			return false, errors.Join(te, err)
		}
		t.log.WarnContext(ctx, "message delivery failed",
			logger.ItemID(sending),
			slog.String("kind", te.Kind),
			logger.Error(te))
		return false, te
	}

	if err := t.removeIfExists(sending); err != nil {
		return true, err
	}
	failure, _ := fileVariant(sending, SuffixFailure)
	if err := t.removeIfExists(failure); err != nil {
		return true, err
	}

	t.log.DebugContext(ctx, "message sent",
		logger.ItemID(sending),
		logger.Recipients(len(msg.Envelope.Recipients)),
		logger.Duration(t.opts.Clock().Sub(start)))
	return true, nil
}

// claim takes exclusive ownership of item and returns its in-flight file name.
// Losing to another consumer yields claimed == false with no error.
func (t *FileTransport) claim(ctx context.Context, item Item) (string, bool, error) {
	sending, ok := fileVariant(item.ID, SuffixSending)
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidItemID, item.ID)
	}

	if strings.HasSuffix(item.ID, SuffixQueued) {
		queued, _ := fileVariant(item.ID, SuffixQueued)
		if _, err := os.Stat(t.path(sending)); err == nil {
			return "", false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("stat in-flight file: %w", err)
		}
		// Rename keeps the mtime and Recover ages in-flight files by it, so
		// touch first.
		if err := t.touch(queued); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				t.log.DebugContext(ctx, "claim lost", logger.ItemID(item.ID))
				return "", false, nil
			}
			return "", false, err
		}
		if err := os.Rename(t.path(queued), t.path(sending)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				t.log.DebugContext(ctx, "claim lost", logger.ItemID(item.ID))
				return "", false, nil
			}
			return "", false, fmt.Errorf("claim queue file: %w", err)
		}
		return sending, true, nil
	}

	// In flight: only a failed item can be picked up again, and only by
	// whoever removes its failure record.
	if t.opts.RetryPolicy == RetryFailedAfterRecover {
		return "", false, nil
	}
	failure, _ := fileVariant(item.ID, SuffixFailure)
	if err := os.Remove(t.path(failure)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("claim failed item: %w", err)
	}

	if err := t.touch(sending); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return sending, true, nil
}

func (t *FileTransport) Delete(ctx context.Context, item Item) (bool, error) {
	stem, ok := itemStem(item.ID)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidItemID, item.ID)
	}

	if err := t.removeIfExists(stem + SuffixFailure); err != nil {
		return false, err
	}

	removed := false
	for _, name := range []string{stem + SuffixQueued, stem + SuffixSending} {
		err := os.Remove(t.path(name))
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("delete queue file: %w", err)
		}
	}

	if removed {
		t.log.DebugContext(ctx, "message deleted", logger.ItemID(item.ID))
	}
	return removed, nil
}

func (t *FileTransport) FlushQueue(ctx context.Context, real Transport, opts ...FlushOption) (int, error) {
	if real == nil {
		return 0, ErrTransportNil
	}

	items, err := t.Queue().Items(ctx)
	if err != nil {
		return 0, err
	}
	queued := items[:0]
	for _, item := range items {
		if strings.HasSuffix(item.ID, SuffixQueued) {
			queued = append(queued, item)
		}
	}

	start := t.opts.Clock()
	limits := t.opts.ResolveFlushLimits(opts...)
	sent, err := Flush(ctx, queued, func(ctx context.Context, item Item) (bool, error) {
		return t.Dequeue(ctx, item, real)
	}, limits, t.opts.Clock)

	t.log.InfoContext(ctx, "queue flushed",
		logger.Count(sent),
		slog.Int("queued", len(queued)),
		logger.Duration(t.opts.Clock().Sub(start)),
		logger.Error(err))
	return sent, err
}

func (t *FileTransport) Recover(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrInvalidRecoveryTimeout
	}

	names, err := scanDir(t.dir, SuffixSending)
	if err != nil {
		return err
	}

	now := t.opts.Clock()
	recovered := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := os.Stat(t.path(name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat in-flight file: %w", err)
		}
		if now.Sub(info.ModTime()) < timeout {
			continue
		}

		failure, _ := fileVariant(name, SuffixFailure)
		if err := t.removeIfExists(failure); err != nil {
			return err
		}
		queued, _ := fileVariant(name, SuffixQueued)
		if err := os.Rename(t.path(name), t.path(queued)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("recover in-flight file: %w", err)
		}
		if err := t.touch(queued); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		recovered++
		t.log.DebugContext(ctx, "message recovered", logger.ItemID(queued))
	}

	if recovered > 0 {
		t.log.InfoContext(ctx, "stale messages recovered",
			logger.Count(recovered),
			slog.Duration("timeout", timeout))
	}
	return nil
}

func (t *FileTransport) writeFailure(sending string, f TransportFailure) error {
	data, err := MarshalFailure(f)
	if err != nil {
		return err
	}
	name, _ := fileVariant(sending, SuffixFailure)
	if err := writeFileAtomic(t.path(name), data); err != nil {
		return fmt.Errorf("write failure record: %w", err)
	}
	return nil
}

func (t *FileTransport) touch(name string) error {
	now := t.opts.Clock()
	if err := os.Chtimes(t.path(name), now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("touch %s: %w", name, err)
	}
	return nil
}

func (t *FileTransport) removeIfExists(name string) error {
	if err := os.Remove(t.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (t *FileTransport) path(name string) string {
	return filepath.Join(t.dir, name)
}

// NewItemID returns a hyphen-free random identifier.
func NewItemID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
