// Package ingest runs one on-demand pass over a user's candidate emails:
// fetch, dedupe against the store, extract, persist.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.io/infrasutra/bankfeed/internal/extract"
	"github.io/infrasutra/bankfeed/internal/mail"
	"github.io/infrasutra/bankfeed/internal/sse"
	"github.io/infrasutra/bankfeed/internal/store"
)

// Result counts one ingestion pass: Total candidate emails examined,
// Processed transactions actually persisted.
type Result struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

type Ingestor struct {
	store  *store.Store
	hub    *sse.Hub
	logger *slog.Logger
	now    func() time.Time
}

// New creates an ingestor. hub may be nil when no live clients need
// pass-completion events.
func New(st *store.Store, hub *sse.Hub, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: st, hub: hub, logger: logger, now: time.Now}
}

// ProcessInbox performs one ingestion pass for userID over the provider's
// candidate emails. A fetch failure aborts the whole pass; every failure
// after that point is isolated to its email and logged. Re-running against
// an unchanged mail set is idempotent: already-persisted references are
// skipped by lookup, and the store's uniqueness constraint backstops any
// race between concurrent passes.
func (ing *Ingestor) ProcessInbox(ctx context.Context, provider mail.Provider, userID string) (Result, error) {
	emails, err := provider.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch candidate emails: %w", err)
	}

	result := Result{Total: len(emails)}
	for _, email := range emails {
		if ing.processEmail(ctx, email, userID) {
			result.Processed++
		}
	}

	ing.logger.Info("ingestion pass complete", "user", userID, "processed", result.Processed, "total", result.Total)
	if ing.hub != nil && result.Processed > 0 {
		ing.hub.Publish(userID, "ingested", result)
	}
	return result, nil
}

func (ing *Ingestor) processEmail(ctx context.Context, email mail.RawEmail, userID string) bool {
	_, err := ing.store.FindByReference(ctx, userID, email.ID)
	if err == nil {
		return false // already processed on an earlier pass
	}
	if !errors.Is(err, sql.ErrNoRows) {
		ing.logger.Warn("duplicate lookup failed, skipping email", "user", userID, "reference", email.ID, "error", err)
		return false
	}

	candidate := extract.FromEmail(email)
	if !candidate.HasAmount || candidate.Direction == extract.DirectionUnknown {
		return false
	}

	date := candidate.Date
	if date == "" {
		date = ing.now().Format("2006-01-02")
	}
	txn := store.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        date,
		Time:        candidate.Time,
		Amount:      candidate.Amount,
		Type:        string(candidate.Direction),
		Sender:      candidate.Sender,
		Recipient:   candidate.Recipient,
		Description: candidate.Description,
		Reference:   candidate.Reference,
		CreatedAt:   ing.now(),
	}
	if err := ing.store.InsertTransaction(ctx, txn); err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			return false
		}
		ing.logger.Error("insert transaction", "user", userID, "reference", email.ID, "error", err)
		return false
	}
	return true
}
