package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// Format selects how commands print their results.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func parseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

const dateLayout = "2006-01-02 15:04:05"

var (
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stateStyle = map[mailqueue.State]lipgloss.Style{
		mailqueue.StateQueued:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		mailqueue.StateSending:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		mailqueue.StateSent:        lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		mailqueue.StateAlreadySent: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		mailqueue.StateFailed:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

func badge(s mailqueue.State) string {
	style, ok := stateStyle[s]
	if !ok {
		return s.Label()
	}
	return style.Render(s.Label())
}

type failureView struct {
	Exception string    `json:"exception" yaml:"exception"`
	Message   string    `json:"message" yaml:"message"`
	Date      time.Time `json:"date" yaml:"date"`
}

type itemView struct {
	ID         string       `json:"id" yaml:"id"`
	State      string       `json:"state" yaml:"state"`
	Date       *time.Time   `json:"date,omitempty" yaml:"date,omitempty"`
	Subject    string       `json:"subject,omitempty" yaml:"subject,omitempty"`
	Sender     string       `json:"sender" yaml:"sender"`
	Recipients []string     `json:"recipients" yaml:"recipients"`
	Failure    *failureView `json:"failure,omitempty" yaml:"failure,omitempty"`
}

type queueView struct {
	Total int        `json:"total" yaml:"total"`
	Items []itemView `json:"items" yaml:"items"`
}

func newItemView(item mailqueue.Item) itemView {
	v := itemView{
		ID:         item.ID,
		State:      item.State.String(),
		Date:       item.Date,
		Subject:    subjectOf(item.Message.Raw),
		Sender:     item.Message.Envelope.Sender,
		Recipients: item.Message.Envelope.Recipients,
	}
	if item.Failure != nil {
		v.Failure = &failureView{
			Exception: item.Failure.Exception,
			Message:   item.Failure.Message,
			Date:      item.Failure.Date,
		}
	}
	return v
}

var headerDecoder = new(mime.WordDecoder)

// subjectOf reads the Subject header without touching the body.
func subjectOf(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	subject := msg.Header.Get("Subject")
	if decoded, err := headerDecoder.DecodeHeader(subject); err == nil {
		return decoded
	}
	return subject
}

func encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// renderQueue prints items and reports whether any of them failed.
func renderQueue(w io.Writer, f Format, items []mailqueue.Item) (bool, error) {
	hasFailures := false
	view := queueView{Total: len(items), Items: make([]itemView, 0, len(items))}
	for _, item := range items {
		if item.State == mailqueue.StateFailed {
			hasFailures = true
		}
		view.Items = append(view.Items, newItemView(item))
	}

	if f != FormatText {
		return hasFailures, encode(w, f, view)
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No mails are currently in queue.")
		return false, err
	}

	fmt.Fprintf(w, "Total mails in queue: %d\n\n", len(items))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tDATE\tSUBJECT\tRECIPIENTS\tSENDER\tID")
	for i, item := range items {
		date := mutedStyle.Render("unknown")
		if item.Date != nil {
			date = item.Date.Local().Format(dateLayout)
		}
		v := view.Items[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			badge(item.State), date, v.Subject, strings.Join(v.Recipients, ", "), v.Sender, v.ID)
	}
	if err := tw.Flush(); err != nil {
		return hasFailures, err
	}

	for _, item := range items {
		if item.Failure == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s %s: %s (%s)\n", badge(item.State), item.ID, item.Failure.Message, item.Failure.Exception)
	}
	return hasFailures, nil
}
