package mail

import (
	"context"
	"strings"
)

// Header is a single name/value pair from an email's header list.
type Header struct {
	Name  string
	Value string
}

// BodyPart is one MIME part of a multi-part email. Data carries the
// transport-encoded (base64url) payload as delivered by the provider.
type BodyPart struct {
	MimeType string
	Data     string
}

// RawEmail is a candidate email as returned by a mail provider. Multi-part
// emails carry their parts in provider order; single-part emails carry the
// encoded payload in Body and leave Parts empty.
type RawEmail struct {
	ID      string
	Headers []Header
	Parts   []BodyPart
	Body    string
}

// Header returns the value of the first header with the given name, or the
// empty string when the header is absent. Lookup is case-insensitive.
func (e RawEmail) Header(name string) string {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Provider fetches a bounded window of candidate emails for one user.
type Provider interface {
	Fetch(ctx context.Context) ([]RawEmail, error)
}
