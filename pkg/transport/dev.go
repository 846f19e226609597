package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// DevTransport saves every message to a directory instead of sending it.
// Each delivery produces an .eml file with the raw bytes and a .json file
// with the envelope.
type DevTransport struct {
	dir string
	now func() time.Time
}

var _ mailqueue.Transport = (*DevTransport)(nil)

// NewDevTransport creates a transport that writes into dir.
// The directory is created on first send.
func NewDevTransport(dir string) *DevTransport {
	return &DevTransport{dir: dir, now: time.Now}
}

type devMetadata struct {
	Timestamp  string   `json:"timestamp"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	Size       int      `json:"size"`
}

func (d *DevTransport) Send(ctx context.Context, m mailqueue.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return mailqueue.NewTransportError("dev", fmt.Errorf("failed to create directory: %w", err))
	}

	now := d.now()
	subject := ""
	if c, err := parseContent(m.Raw); err == nil {
		subject = c.Subject
	}

	identifier := subject
	if identifier == "" {
		identifier = mailqueue.NewItemID()
	}
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405.000000"), sanitizeFilename(identifier))

	if err := os.WriteFile(filepath.Join(d.dir, base+".eml"), m.Raw, 0o644); err != nil {
		return mailqueue.NewTransportError("dev", fmt.Errorf("failed to write message: %w", err))
	}

	meta, err := json.MarshalIndent(devMetadata{
		Timestamp:  now.Format(time.RFC3339Nano),
		Sender:     m.Envelope.Sender,
		Recipients: m.Envelope.Recipients,
		Subject:    subject,
		Size:       len(m.Raw),
	}, "", "  ")
	if err != nil {
		return mailqueue.NewTransportError("dev", err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return mailqueue.NewTransportError("dev", fmt.Errorf("failed to write metadata: %w", err))
	}
	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename turns a subject into a short lower-case filename fragment.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
