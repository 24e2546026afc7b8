// Package extract turns decoded bank-notification text into transaction
// fields. Every extractor is a pure function over unstructured free text:
// each tries its pattern strategies in a fixed priority order and reports
// absence rather than failure, so a non-match is a missing field, not an
// error. The patterns are heuristics tuned to Indian bank alert phrasing
// and are expected to produce false negatives on unfamiliar formats.
package extract

import (
	netmail "net/mail"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction states whether a transaction increases or decreases the user's
// balance.
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
	DirectionUnknown  Direction = "unknown"
)

var (
	bodyDatePattern = regexp.MustCompile(`(?i)Date:\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`)

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Time:\s*(\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM)?)`),
		regexp.MustCompile(`(?i)at\s*(\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM)?)`),
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:INR|Rs\.?|₹)\s*([\d,]+\.\d{2})`),
		regexp.MustCompile(`(?i)Amount:\s*(?:INR|Rs\.?|₹)?\s*([\d,]+\.\d{2})`),
	}

	senderPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)from\s*:?\s*([A-Za-z\s]+)`),
		regexp.MustCompile(`(?i)(?:sender|by)\s*:?\s*([A-Za-z\s]+)`),
	}

	recipientPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)to\s*:?\s*([A-Za-z\s]+)`),
		regexp.MustCompile(`(?i)(?:recipient|for)\s*:?\s*([A-Za-z\s]+)`),
	}

	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:description|remarks|comment)s?:?\s*([A-Za-z0-9\s]+)`),
		regexp.MustCompile(`(?i)info:?\s*([A-Za-z\s0-9]+)`),
	}

	receivedKeywords = []string{"credited", "deposited", "received"}
	sentKeywords     = []string{"debited", "withdrawn", "sent", "payment", "upi txn"}
)

// Date extracts a calendar date, preferring an explicit "Date: D/M/Y" label
// in the body over the email's transport date, which is normalized to
// YYYY-MM-DD. Returns the empty string when neither source yields a date.
func Date(headerDate, body string) string {
	if match := bodyDatePattern.FindStringSubmatch(body); match != nil {
		return match[1]
	}
	if headerDate != "" {
		if parsed, err := netmail.ParseDate(headerDate); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return ""
}

// Time extracts a wall-clock time labelled "Time:" or introduced by "at".
func Time(body string) string {
	for _, pattern := range timePatterns {
		if match := pattern.FindStringSubmatch(body); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}

// Amount extracts a currency-marked decimal with exactly two fraction
// digits, either marked directly (INR, Rs, Rs., ₹) or following an
// "Amount:" label. Thousands separators are stripped before parsing. The
// second return is false when no amount pattern matches.
func Amount(body string) (decimal.Decimal, bool) {
	for _, pattern := range amountPatterns {
		match := pattern.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		value, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
		if err != nil {
			continue
		}
		return value, true
	}
	return decimal.Decimal{}, false
}

// Classify determines the transaction direction from subject and body.
// Received keywords are checked strictly before sent keywords, so an email
// containing both classifies as received.
func Classify(subject, body string) Direction {
	lowerBody := strings.ToLower(body)
	lowerSubject := strings.ToLower(subject)

	for _, keyword := range receivedKeywords {
		if strings.Contains(lowerBody, keyword) {
			return DirectionReceived
		}
	}
	if strings.Contains(lowerSubject, "credit") {
		return DirectionReceived
	}

	for _, keyword := range sentKeywords {
		if strings.Contains(lowerBody, keyword) {
			return DirectionSent
		}
	}
	if strings.Contains(lowerSubject, "debit") {
		return DirectionSent
	}

	return DirectionUnknown
}

// Sender extracts the counterparty name following a "from:", "sender:" or
// "by:" label. The capture is a run of letters and spaces, so it can overrun
// into adjacent words; that looseness is part of the documented contract.
func Sender(body string) string {
	return firstMatch(senderPatterns, body)
}

// Recipient extracts the counterparty name following a "to:", "recipient:"
// or "for:" label.
func Recipient(body string) string {
	return firstMatch(recipientPatterns, body)
}

// Description extracts the free-text remark following a "description:",
// "remarks:", "comment(s):" or "info:" label.
func Description(body string) string {
	return firstMatch(descriptionPatterns, body)
}

func firstMatch(patterns []*regexp.Regexp, body string) string {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(body); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}
