package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.io/infrasutra/bankfeed/internal/store"
)

// LocalProvider replays raw messages captured by the SMTP gateway as
// candidate emails. Fetched rows are marked consumed so a later pass does
// not re-examine mail that extraction already rejected; marking happens
// before processing, which keeps the same weak at-least-once contract as
// the remote provider.
type LocalProvider struct {
	store  *store.Store
	user   string
	logger *slog.Logger
}

func NewLocalProvider(st *store.Store, user string, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{store: st, user: user, logger: logger}
}

func (p *LocalProvider) Fetch(ctx context.Context) ([]RawEmail, error) {
	messages, err := p.store.ListUnconsumedInbox(ctx, p.user)
	if err != nil {
		return nil, fmt.Errorf("list captured mail: %w", err)
	}

	emails := make([]RawEmail, 0, len(messages))
	consumed := make([]string, 0, len(messages))
	for _, message := range messages {
		consumed = append(consumed, message.ID)
		email, err := FromRFC822(message.ID, message.Raw)
		if err != nil {
			p.logger.Warn("skip unparseable captured message", "id", message.ID, "error", err)
			continue
		}
		emails = append(emails, email)
	}

	if err := p.store.MarkInboxConsumed(ctx, consumed); err != nil {
		return nil, fmt.Errorf("mark captured mail consumed: %w", err)
	}
	return emails, nil
}
