package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/mail"
)

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
		Attachments []Attachment
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently and waits for all of them.
		// Messages without recipients or content are skipped.
		SendMessages(ctx context.Context, messages ...*EmailMessage) error
	}
)

// Attach base64-encodes content and adds it as an attachment.
// The content type is sniffed when not provided.
func (m *EmailMessage) Attach(content []byte, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Sendable reports whether the message has somewhere to go and something to say.
func (m *EmailMessage) Sendable() bool {
	return m.HasRecipients() && (m.HasContent() || m.HasAttachments())
}

// ParseAddresses parses a list of RFC 5322 addresses, skipping blanks.
func ParseAddresses(addrs []string) ([]mail.Address, error) {
	list := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		a = CleanString(a)
		if a == "" {
			continue
		}
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return nil, err
		}
		list = append(list, *addr)
	}
	return list, nil
}
