package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
	"github.com/dmitrymomot/mailqueue/pkg/redisqueue"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(ctx context.Context, root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

type recorder struct {
	mu   sync.Mutex
	sent []mailqueue.Message
	err  error
}

func (r *recorder) Send(_ context.Context, m mailqueue.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func message(subject string) mailqueue.Message {
	return mailqueue.Message{
		Envelope: mailqueue.Envelope{
			Sender:     "noreply@example.com",
			Recipients: []string{"jane@example.org"},
		},
		Raw: []byte("From: noreply@example.com\r\nTo: jane@example.org\r\nSubject: " + subject + "\r\n\r\nHello\r\n"),
	}
}

func newTestApp(t *testing.T, spool mailqueue.QueueableTransport, real mailqueue.Transport) *App {
	t.Helper()
	app := NewApp(Config{})
	app.Logger = slog.New(slog.DiscardHandler)
	app.Spool = spool
	app.Transport = real
	return app
}

func newFileSpool(t *testing.T) (*mailqueue.FileTransport, string) {
	t.Helper()
	dir := t.TempDir()
	spool, err := mailqueue.NewFileTransport(dir, mailqueue.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	return spool, dir
}

func enqueue(t *testing.T, spool mailqueue.QueueableTransport, subjects ...string) {
	t.Helper()
	for _, s := range subjects {
		_, err := spool.Enqueue(context.Background(), message(s))
		require.NoError(t, err)
	}
}

// failOne enqueues a message and leaves it in the failed state.
func failOne(t *testing.T, spool mailqueue.QueueableTransport, subject string) mailqueue.Item {
	t.Helper()
	item, err := spool.Enqueue(context.Background(), message(subject))
	require.NoError(t, err)
	_, err = spool.Dequeue(context.Background(), *item, &recorder{err: errors.New("relay unavailable")})
	require.Error(t, err)

	items, err := spool.Queue().Items(context.Background())
	require.NoError(t, err)
	for _, it := range items {
		if it.State == mailqueue.StateFailed {
			return it
		}
	}
	t.Fatal("no failed item in queue")
	return mailqueue.Item{}
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(newTestApp(t, mailqueue.NewMemoryTransport(), &recorder{}))
	assert.Equal(t, "mailqueue", root.Use)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, expected := range []string{"list", "flush", "recover", "send", "delete", "run"} {
		assert.True(t, names[expected], "expected subcommand %q", expected)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(newTestApp(t, mailqueue.NewMemoryTransport(), &recorder{}))
	_, err := executeCommand(context.Background(), root, "list", "--format", "xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()

		root := NewRootCommand(newTestApp(t, mailqueue.NewMemoryTransport(), &recorder{}))
		out, err := executeCommand(context.Background(), root, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No mails are currently in queue.")
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "Welcome aboard", "Password reset")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Total mails in queue: 2")
		assert.Contains(t, out, "WAIT")
		assert.Contains(t, out, "Welcome aboard")
		assert.Contains(t, out, "Password reset")
		assert.Contains(t, out, "jane@example.org")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "first", "second")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "list", "-o", "json")
		require.NoError(t, err)

		var view queueView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, 2, view.Total)
		require.Len(t, view.Items, 2)
		assert.Equal(t, "queued", view.Items[0].State)
		assert.Equal(t, "noreply@example.com", view.Items[0].Sender)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		failOne(t, spool, "bounced")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "list", "--format", "yaml")
		require.NoError(t, err)

		var view queueView
		require.NoError(t, yaml.Unmarshal([]byte(out), &view))
		require.Len(t, view.Items, 1)
		assert.Equal(t, "failed", view.Items[0].State)
		assert.Equal(t, "bounced", view.Items[0].Subject)
		require.NotNil(t, view.Items[0].Failure)
		assert.Equal(t, "relay unavailable", view.Items[0].Failure.Message)
	})

	t.Run("strict with failures", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		enqueue(t, spool, "fine")
		failOne(t, spool, "bounced")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "list", "--strict")
		assert.ErrorIs(t, err, ErrFailuresInQueue)
		assert.Contains(t, out, "FAIL")
		assert.Contains(t, out, "relay unavailable")
	})

	t.Run("strict without failures", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "fine")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		_, err := executeCommand(context.Background(), root, "list", "--strict")
		assert.NoError(t, err)
	})

	t.Run("watch", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "watched")

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(ctx, root, "list", "--watch", "--interval", "10ms")
		require.NoError(t, err)
		assert.Contains(t, out, "watched")
		assert.Contains(t, out, "List is refreshed every 10ms")
	})
}

func TestFlushCommand(t *testing.T) {
	t.Parallel()

	t.Run("with limit", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "one", "two", "three")
		real := &recorder{}

		root := NewRootCommand(newTestApp(t, spool, real))
		out, err := executeCommand(context.Background(), root, "flush", "--limit", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "Successfully sent 2 mails, 1 mail is still enqueued.")
		assert.Equal(t, 2, real.count())
	})

	t.Run("everything as json", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		enqueue(t, spool, "one", "two")
		real := &recorder{}

		root := NewRootCommand(newTestApp(t, spool, real))
		out, err := executeCommand(context.Background(), root, "flush", "-o", "json")
		require.NoError(t, err)

		var res flushResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, flushResult{Sent: 2, Remaining: 0}, res)
		assert.Equal(t, 2, real.count())
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()

		root := NewRootCommand(newTestApp(t, mailqueue.NewMemoryTransport(), &recorder{}))
		out, err := executeCommand(context.Background(), root, "flush")
		require.NoError(t, err)
		assert.Contains(t, out, "No mails are currently in queue.")
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "one")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		_, err := executeCommand(context.Background(), root, "flush", "--limit", "0")
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		enqueue(t, spool, "one", "two")

		root := NewRootCommand(newTestApp(t, spool, &recorder{err: errors.New("relay unavailable")}))
		out, err := executeCommand(context.Background(), root, "flush", "-o", "json")
		require.Error(t, err)
		assert.ErrorIs(t, err, mailqueue.ErrTransportFailed)
		assert.Contains(t, out, `"remaining": 2`)
		assert.Contains(t, out, "relay unavailable")
	})
}

func TestRecoverCommand(t *testing.T) {
	t.Parallel()

	t.Run("stale item", func(t *testing.T) {
		t.Parallel()

		spool, dir := newFileSpool(t)
		failed := failOne(t, spool, "stuck")

		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(dir, failed.ID), old, old))

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "recover", "--timeout", "1m")
		require.NoError(t, err)
		assert.Contains(t, out, "Recovered 1 mail in flight for at least 1m0s.")

		items, err := spool.Queue().Items(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, mailqueue.StateQueued, items[0].State)
		assert.Nil(t, items[0].Failure)
	})

	t.Run("fresh item stays", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		failOne(t, spool, "recent")

		root := NewRootCommand(newTestApp(t, spool, &recorder{}))
		out, err := executeCommand(context.Background(), root, "recover", "-o", "json")
		require.NoError(t, err)

		var res recoverResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 0, res.Recovered)
		assert.Equal(t, "15m0s", res.Timeout)
	})

	t.Run("memory backend", func(t *testing.T) {
		t.Parallel()

		root := NewRootCommand(newTestApp(t, mailqueue.NewMemoryTransport(), &recorder{}))
		_, err := executeCommand(context.Background(), root, "recover")
		assert.ErrorIs(t, err, ErrNotRecoverable)
	})
}

func TestDeleteCommand(t *testing.T) {
	t.Parallel()

	spool, _ := newFileSpool(t)
	enqueue(t, spool, "unwanted")
	items, err := spool.Queue().Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	root := NewRootCommand(newTestApp(t, spool, &recorder{}))
	out, err := executeCommand(context.Background(), root, "delete", items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+items[0].ID)

	count, err := spool.Queue().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	root = NewRootCommand(newTestApp(t, spool, &recorder{}))
	out, err = executeCommand(context.Background(), root, "delete", items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "is not in queue")

	root = NewRootCommand(newTestApp(t, spool, &recorder{}))
	_, err = executeCommand(context.Background(), root, "delete")
	assert.Error(t, err)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	t.Run("sends one mail", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		enqueue(t, spool, "first")
		target, err := spool.Enqueue(context.Background(), message("second"))
		require.NoError(t, err)
		real := &recorder{}

		root := NewRootCommand(newTestApp(t, spool, real))
		out, err := executeCommand(context.Background(), root, "send", target.ID)
		require.NoError(t, err)
		assert.Contains(t, out, "Sent "+target.ID)
		require.Equal(t, 1, real.count())
		assert.Equal(t, "second", subjectOf(real.sent[0].Raw))

		count, err := spool.Queue().Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("already sent", func(t *testing.T) {
		t.Parallel()

		spool, _ := newFileSpool(t)
		enqueue(t, spool, "once")
		items, err := spool.Queue().Items(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 1)
		real := &recorder{}

		_, err = executeCommand(context.Background(), NewRootCommand(newTestApp(t, spool, real)), "send", items[0].ID)
		require.NoError(t, err)

		out, err := executeCommand(context.Background(), NewRootCommand(newTestApp(t, spool, real)), "send", items[0].ID, "-o", "json")
		require.NoError(t, err)

		var res sendResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, sendResult{ID: items[0].ID, State: mailqueue.StateAlreadySent}, res)
		assert.Equal(t, 1, real.count())
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		spool := mailqueue.NewMemoryTransport()
		enqueue(t, spool, "bounced")
		items, err := spool.Queue().Items(context.Background())
		require.NoError(t, err)
		require.Len(t, items, 1)

		root := NewRootCommand(newTestApp(t, spool, &recorder{err: errors.New("relay unavailable")}))
		out, err := executeCommand(context.Background(), root, "send", items[0].ID)
		assert.ErrorIs(t, err, mailqueue.ErrTransportFailed)
		assert.Contains(t, out, "Sending "+items[0].ID+" failed")
		assert.Contains(t, out, "relay unavailable")

		count, err := spool.Queue().Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("held by another consumer", func(t *testing.T) {
		t.Parallel()

		spool, err := mailqueue.NewFileTransport(t.TempDir(),
			mailqueue.WithLogger(slog.New(slog.DiscardHandler)),
			mailqueue.WithFailedRetryPolicy(mailqueue.RetryFailedAfterRecover))
		require.NoError(t, err)
		failed := failOne(t, spool, "stuck")
		real := &recorder{}

		root := NewRootCommand(newTestApp(t, spool, real))
		out, err := executeCommand(context.Background(), root, "send", failed.ID, "-o", "json")
		require.NoError(t, err)

		var res sendResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, mailqueue.StateFailed, res.State)
		assert.Empty(t, res.Error)
		assert.Zero(t, real.count())
	})
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	spool := mailqueue.NewMemoryTransport()
	enqueue(t, spool, "one", "two")
	real := &recorder{}

	app := newTestApp(t, spool, real)
	app.Config.Queue.FlushInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var (
		out string
		err error
	)
	go func() {
		defer close(done)
		out, err = executeCommand(ctx, NewRootCommand(app), "run")
	}()

	require.Eventually(t, func() bool { return real.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	require.NoError(t, err)
	assert.Contains(t, out, "Sent 2 mails.")
}

func TestApp_OpensConfiguredBackend(t *testing.T) {
	t.Parallel()

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		app := NewApp(Config{Queue: mailqueue.Config{Backend: mailqueue.BackendFile, Path: t.TempDir()}})
		app.Logger = slog.New(slog.DiscardHandler)

		spool, err := app.spool(context.Background())
		require.NoError(t, err)
		assert.IsType(t, &mailqueue.FileTransport{}, spool)
	})

	t.Run("redis", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		app := NewApp(Config{
			Queue:      mailqueue.Config{Backend: mailqueue.BackendRedis},
			Redis:      redis.Config{ConnectionURL: "redis://" + mr.Addr(), RetryAttempts: 1, ConnectTimeout: time.Second},
			RedisQueue: redisqueue.Config{Prefix: "cli", ScanBatchSize: 10},
		})
		app.Logger = slog.New(slog.DiscardHandler)

		spool, err := app.spool(context.Background())
		require.NoError(t, err)
		assert.IsType(t, &redisqueue.Transport{}, spool)
		require.NotNil(t, app.healthcheck)
		require.NoError(t, app.healthcheck(context.Background()))

		enqueue(t, spool, "via redis")
		out, err := executeCommand(context.Background(), NewRootCommand(app), "list")
		require.NoError(t, err)
		assert.Contains(t, out, "via redis")
		assert.NoError(t, app.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		app := NewApp(Config{Queue: mailqueue.Config{Backend: "sqlite"}})
		app.Logger = slog.New(slog.DiscardHandler)

		_, err := app.spool(context.Background())
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
}
