package transport

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// PostmarkClient is the subset of *postmark.Client the transport calls.
type PostmarkClient interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkTransport delivers messages through the Postmark email API.
type PostmarkTransport struct {
	client PostmarkClient
	config Config
}

var _ mailqueue.Transport = (*PostmarkTransport)(nil)

// NewPostmarkTransport creates a Postmark-backed transport.
// Both tokens are required.
func NewPostmarkTransport(cfg Config) (*PostmarkTransport, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail != "" {
		if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
			return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
		}
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	if cfg.PostmarkBaseURL != "" {
		client.BaseURL = strings.TrimSuffix(cfg.PostmarkBaseURL, "/")
	}
	return NewPostmarkTransportWithClient(client, cfg), nil
}

// NewPostmarkTransportWithClient wraps a pre-configured client.
func NewPostmarkTransportWithClient(client PostmarkClient, cfg Config) *PostmarkTransport {
	return &PostmarkTransport{client: client, config: cfg}
}

// Send extracts subject and bodies from the raw message and submits them
// to every envelope recipient.
func (t *PostmarkTransport) Send(ctx context.Context, m mailqueue.Message) error {
	c, err := parseContent(m.Raw)
	if err != nil {
		return mailqueue.NewTransportError("postmark.malformed", err)
	}

	from := t.config.SenderEmail
	if from == "" {
		from = c.From
	}
	if from == "" {
		from = m.Envelope.Sender
	}

	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:          from,
		ReplyTo:       c.ReplyTo,
		To:            strings.Join(m.Envelope.Recipients, ","),
		Subject:       c.Subject,
		Tag:           c.Tag,
		HTMLBody:      c.HTMLBody,
		TextBody:      c.TextBody,
		MessageStream: t.config.PostmarkMessageStream,
		TrackOpens:    c.HTMLBody != "",
	})
	if err != nil {
		return mailqueue.NewTransportError("postmark", err)
	}
	if resp.ErrorCode > 0 {
		return mailqueue.NewTransportError(
			"postmark."+strconv.FormatInt(int64(resp.ErrorCode), 10),
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
