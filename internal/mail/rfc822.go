package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// FromRFC822 converts a raw RFC 822 message into a RawEmail with the given
// provider id. Inline text parts become transport-encoded body parts so the
// result is shaped the same as an API-fetched email; attachments are skipped.
func FromRFC822(id string, raw []byte) (RawEmail, error) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return RawEmail{}, fmt.Errorf("parse message: %w", err)
	}

	email := RawEmail{ID: id}

	if subject, err := reader.Header.Subject(); err == nil {
		email.Headers = append(email.Headers, Header{Name: "Subject", Value: subject})
	}
	if fromList, err := reader.Header.AddressList("From"); err == nil && len(fromList) > 0 {
		email.Headers = append(email.Headers, Header{Name: "From", Value: fromList[0].Address})
	}
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		email.Headers = append(email.Headers, Header{Name: "Date", Value: date.Format(time.RFC1123Z)})
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return email, fmt.Errorf("read part: %w", err)
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		if mediaType != "" && !strings.HasPrefix(mediaType, "text/") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		if mediaType == "" {
			mediaType = "text/plain"
		}
		email.Parts = append(email.Parts, BodyPart{
			MimeType: mediaType,
			Data:     base64.RawURLEncoding.EncodeToString(body),
		})
	}

	if len(email.Parts) == 1 {
		email.Body = email.Parts[0].Data
		email.Parts = nil
	}
	return email, nil
}

// MessageID returns the message's Message-Id header with angle brackets
// stripped, or the empty string when the header is missing.
func MessageID(raw []byte) string {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	id, err := reader.Header.MessageID()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}
