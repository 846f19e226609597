package mailqueue

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"time"
)

// Envelope holds the SMTP-level sender and recipients of a message.
type Envelope struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
}

// Message is the opaque payload the queue stores: raw MIME bytes plus their envelope.
// The queue never parses Raw.
type Message struct {
	Envelope Envelope
	Raw      []byte
}

// Validate checks that the message can be delivered at all.
func (m Message) Validate() error {
	if m.Envelope.Sender == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	}
	if _, err := mail.ParseAddress(m.Envelope.Sender); err != nil {
		return fmt.Errorf("%w: sender %q: %v", ErrInvalidMessage, m.Envelope.Sender, err)
	}
	if len(m.Envelope.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	for _, rcpt := range m.Envelope.Recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, rcpt, err)
		}
	}
	if len(m.Raw) == 0 {
		return fmt.Errorf("%w: message body is empty", ErrInvalidMessage)
	}
	return nil
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	return Message{
		Envelope: Envelope{
			Sender:     m.Envelope.Sender,
			Recipients: slices.Clone(m.Envelope.Recipients),
		},
		Raw: bytes.Clone(m.Raw),
	}
}

// Equal reports whether two messages carry the same envelope and bytes.
func (m Message) Equal(other Message) bool {
	return m.Envelope.Sender == other.Envelope.Sender &&
		slices.Equal(m.Envelope.Recipients, other.Envelope.Recipients) &&
		bytes.Equal(m.Raw, other.Raw)
}

// State of a queue item.
type State string

const (
	StateQueued      State = "queued"
	StateSending     State = "sending"
	StateSent        State = "sent"
	StateAlreadySent State = "already_sent"
	StateFailed      State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Label returns the short badge used by console listings.
func (s State) Label() string {
	switch s {
	case StateQueued:
		return "WAIT"
	case StateSending:
		return "SEND"
	case StateSent, StateAlreadySent:
		return "SENT"
	case StateFailed:
		return "FAIL"
	default:
		return "????"
	}
}

// TransportFailure describes why the last delivery attempt of an item failed.
type TransportFailure struct {
	Exception string    `json:"exception"`
	Message   string    `json:"message"`
	Date      time.Time `json:"date"`
}

// NewTransportFailure captures err as a failure record dated now.
func NewTransportFailure(err error) TransportFailure {
	return NewTransportFailureAt(err, time.Now())
}

// NewTransportFailureAt captures err as a failure record dated now.
func NewTransportFailureAt(err error, now time.Time) TransportFailure {
	te := AsTransportError(err)
	return TransportFailure{
		Exception: te.Kind,
		Message:   te.Error(),
		Date:      now.UTC(),
	}
}

// Item is a snapshot of one message tracked by a queue.
// Changing an Item has no effect on the backing store.
type Item struct {
	ID      string
	Message Message
	State   State
	// Date is the file modification time, the enqueue time or the time of
	// the last claim. Nil when unknown.
	Date    *time.Time
	Failure *TransportFailure
}

// LogValue implements slog.LogValuer.
func (i Item) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", i.ID),
		slog.String("state", i.State.String()),
		slog.String("sender", i.Message.Envelope.Sender),
		slog.Int("recipients", len(i.Message.Envelope.Recipients)),
	}
	if i.Date != nil {
		attrs = append(attrs, slog.Time("date", *i.Date))
	}
	if i.Failure != nil {
		attrs = append(attrs, slog.String("failure", i.Failure.Message))
	}
	return slog.GroupValue(attrs...)
}
