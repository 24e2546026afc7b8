package extract

import (
	"encoding/base64"
	"strings"

	"github.io/infrasutra/bankfeed/internal/mail"
)

// DecodeBody converts a transport-encoded payload into plain text. Providers
// deliver base64url data; padded and standard alphabets are accepted as
// fallbacks. Absent or undecodable input yields the empty string, never an
// error.
func DecodeBody(data string) string {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return ""
	}
	for _, encoding := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if decoded, err := encoding.DecodeString(trimmed); err == nil {
			return string(decoded)
		}
	}
	return ""
}

// DecodePart decodes the wrapper-object form of a body. A nil part yields
// the empty string.
func DecodePart(part *mail.BodyPart) string {
	if part == nil {
		return ""
	}
	return DecodeBody(part.Data)
}
