package transport_test

import (
	"strings"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

func plainMessage(subject string) mailqueue.Message {
	raw := strings.Join([]string{
		"From: Billing <billing@example.com>",
		"To: customer@example.org",
		"Subject: " + subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Your invoice is ready.",
		"",
	}, "\r\n")
	return mailqueue.Message{
		Envelope: mailqueue.Envelope{
			Sender:     "bounces@example.com",
			Recipients: []string{"customer@example.org", "audit@example.org"},
		},
		Raw: []byte(raw),
	}
}

func multipartMessage() mailqueue.Message {
	raw := strings.Join([]string{
		"From: =?utf-8?q?J=C3=BCrgen?= <juergen@example.com>",
		"Reply-To: support@example.com",
		"To: customer@example.org",
		"Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=",
		"X-PM-Tag: welcome",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Hallo J=C3=BCrgen",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"PHA+SGFsbG88L3A+",
		"--inner--",
		"--outer",
		"Content-Type: text/plain",
		`Content-Disposition: attachment; filename="notes.txt"`,
		"",
		"attachment body",
		"--outer--",
		"",
	}, "\r\n")
	return mailqueue.Message{
		Envelope: mailqueue.Envelope{
			Sender:     "juergen@example.com",
			Recipients: []string{"customer@example.org"},
		},
		Raw: []byte(raw),
	}
}
