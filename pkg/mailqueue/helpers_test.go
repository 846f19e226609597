package mailqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

func testMessage(subject string) mailqueue.Message {
	return mailqueue.Message{
		Envelope: mailqueue.Envelope{
			Sender:     "noreply@example.com",
			Recipients: []string{"user@example.com"},
		},
		Raw: []byte("Subject: " + subject + "\r\n\r\nHello"),
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockTransport is a testify mock of the real transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, msg mailqueue.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// recorder delivers messages into a slice and fails for subjects listed in fail.
type recorder struct {
	mu     sync.Mutex
	sent   []mailqueue.Message
	fail   map[string]error
	onSend func()
}

func newRecorder() *recorder {
	return &recorder{fail: make(map[string]error)}
}

func (r *recorder) Send(_ context.Context, m mailqueue.Message) error {
	if r.onSend != nil {
		r.onSend()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[string(m.Raw)]; ok {
		return err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) FailOn(m mailqueue.Message, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[string(m.Raw)] = err
}

func (r *recorder) Heal(m mailqueue.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fail, string(m.Raw))
}

func (r *recorder) Sent() []mailqueue.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailqueue.Message(nil), r.sent...)
}

func subjects(msgs []mailqueue.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Raw))
	}
	return out
}

type smtpError struct {
	code int
}

func (e *smtpError) Error() string {
	return fmt.Sprintf("smtp: server replied %d", e.code)
}

var errConnectionRefused = errors.New("connection refused")

// requireDetachedItems mutates everything the spool hands out, including the
// producer's own message, and checks the stored copy is unchanged.
func requireDetachedItems(t *testing.T, tr mailqueue.QueueableTransport) {
	t.Helper()
	ctx := context.Background()

	msg := testMessage("original")
	item, err := tr.Enqueue(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, item)

	msg.Raw[0] = 'X'
	msg.Envelope.Recipients[0] = "reused@example.com"
	item.Message.Raw[1] = 'X'
	item.Message.Envelope.Recipients[0] = "returned@example.com"

	items, err := tr.Queue().Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	items[0].Message.Raw[2] = 'X'
	items[0].Message.Envelope.Recipients[0] = "hijacked@example.com"

	got, ok, err := tr.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, testMessage("original").Equal(got.Message), "stored message changed: %q %v",
		got.Message.Raw, got.Message.Envelope.Recipients)

	var sent mailqueue.Message
	done, err := tr.Dequeue(ctx, got, mailqueue.TransportFunc(func(_ context.Context, m mailqueue.Message) error {
		sent = m
		return nil
	}))
	require.NoError(t, err)
	require.True(t, done)
	require.True(t, testMessage("original").Equal(sent))
}
