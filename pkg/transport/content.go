package transport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

// content is the part of a raw message an API transport needs.
type content struct {
	From     string
	ReplyTo  string
	Subject  string
	Tag      string
	TextBody string
	HTMLBody string
}

var wordDecoder = new(mime.WordDecoder)

// parseContent extracts headers and the text/html bodies of a raw message.
// Attachments are skipped.
func parseContent(raw []byte) (content, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return content{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	c := content{
		From:    decodeHeader(msg.Header.Get("From")),
		ReplyTo: decodeHeader(msg.Header.Get("Reply-To")),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Tag:     msg.Header.Get("X-PM-Tag"),
	}
	if err := c.walk(textproto.MIMEHeader(msg.Header), msg.Body); err != nil {
		return content{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return c, nil
}

func (c *content) walk(header textproto.MIMEHeader, body io.Reader) error {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if err := c.walk(part.Header, part); err != nil {
				return err
			}
		}
	}

	if strings.HasPrefix(header.Get("Content-Disposition"), "attachment") {
		return nil
	}

	data, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return err
	}

	switch mediaType {
	case "text/plain":
		if c.TextBody == "" {
			c.TextBody = string(data)
		}
	case "text/html":
		if c.HTMLBody == "" {
			c.HTMLBody = string(data)
		}
	}
	return nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode.
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		read, err := n.r.Read(p)
		kept := 0
		for _, b := range p[:read] {
			if b != '\r' && b != '\n' {
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

func decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}
