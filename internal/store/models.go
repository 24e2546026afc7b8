package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	Email     string
	CreatedAt time.Time
	LastLogin time.Time
}

// Transaction is one persisted bank transaction. Reference is the mail
// provider's message id and, together with UserID, the idempotency key.
type Transaction struct {
	ID          string
	UserID      string
	Date        string // calendar date, ISO or as written in the email body
	Time        string // optional wall-clock time, empty when absent
	Amount      decimal.Decimal
	Type        string // "received" or "sent"
	Sender      string
	Recipient   string
	Description string
	Reference   string
	CreatedAt   time.Time
}

// InboxMessage is a raw email captured by the SMTP gateway, buffered until
// the next ingestion pass consumes it.
type InboxMessage struct {
	ID        string
	UserEmail string
	From      string
	Subject   string
	Raw       []byte
	CreatedAt time.Time
}

// Stats summarizes a user's persisted transactions for the dashboard.
type Stats struct {
	Count    int64
	Received decimal.Decimal
	Sent     decimal.Decimal
	Net      decimal.Decimal
}
