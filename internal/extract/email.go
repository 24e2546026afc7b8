package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.io/infrasutra/bankfeed/internal/mail"
)

// Candidate is the extraction result for one email. String fields are empty
// when the corresponding pattern found nothing; HasAmount reports whether an
// amount was extracted at all. A candidate is persistable only when it has
// an amount and a known direction.
type Candidate struct {
	Date        string
	Time        string
	Amount      decimal.Decimal
	HasAmount   bool
	Direction   Direction
	Sender      string
	Recipient   string
	Description string
	Reference   string
}

// FromEmail maps a raw email to a transaction candidate. The body used for
// extraction is the first MIME part typed text/plain or text/html, decoded;
// single-part emails use their sole payload. Missing headers read as empty
// strings. Pure given its input.
func FromEmail(email mail.RawEmail) Candidate {
	subject := email.Header("Subject")
	headerDate := email.Header("Date")
	body := selectBody(email)

	amount, hasAmount := Amount(body)
	return Candidate{
		Date:        Date(headerDate, body),
		Time:        Time(body),
		Amount:      amount,
		HasAmount:   hasAmount,
		Direction:   Classify(subject, body),
		Sender:      Sender(body),
		Recipient:   Recipient(body),
		Description: Description(body),
		Reference:   email.ID,
	}
}

func selectBody(email mail.RawEmail) string {
	if len(email.Parts) > 0 {
		for i := range email.Parts {
			part := &email.Parts[i]
			if strings.HasPrefix(part.MimeType, "text/plain") || strings.HasPrefix(part.MimeType, "text/html") {
				return DecodePart(part)
			}
		}
		return ""
	}
	return DecodeBody(email.Body)
}
