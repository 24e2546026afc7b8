package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/bankfeed/internal/mail"
	"github.io/infrasutra/bankfeed/internal/store"
)

type fakeProvider struct {
	emails []mail.RawEmail
	err    error
}

func (p *fakeProvider) Fetch(context.Context) ([]mail.RawEmail, error) {
	return p.emails, p.err
}

func newTestIngestor(t *testing.T) (*Ingestor, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, nil, logger), st
}

func encode(body string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(body))
}

func creditEmail(id string) mail.RawEmail {
	return mail.RawEmail{
		ID: id,
		Headers: []mail.Header{
			{Name: "Subject", Value: "Credit Alert"},
			{Name: "Date", Value: "Tue, 05 Mar 2024 10:00:00 +0530"},
		},
		Body: encode("your account was credited. Amount: INR 500.00 from: John Doe."),
	}
}

func TestProcessInbox(t *testing.T) {
	ing, st := newTestIngestor(t)
	ctx := context.Background()

	provider := &fakeProvider{emails: []mail.RawEmail{
		creditEmail("msg-1"),
		{ID: "msg-2", Body: encode("your OTP is valid for ten minutes")}, // no amount
	}}

	result, err := ing.ProcessInbox(ctx, provider, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Total: 2}, result)

	txn, err := st.FindByReference(ctx, "me@example.com", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", txn.Amount.StringFixed(2))
	assert.Equal(t, "received", txn.Type)
	assert.Equal(t, "John Doe", txn.Sender)
	assert.Equal(t, "2024-03-05", txn.Date)
}

// A second pass over an unchanged mail set persists nothing.
func TestProcessInbox_Idempotent(t *testing.T) {
	ing, _ := newTestIngestor(t)
	ctx := context.Background()

	provider := &fakeProvider{emails: []mail.RawEmail{creditEmail("msg-1")}}

	first, err := ing.ProcessInbox(ctx, provider, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Total: 1}, first)

	second, err := ing.ProcessInbox(ctx, provider, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 0, Total: 1}, second)
}

func TestProcessInbox_FetchFailureAbortsPass(t *testing.T) {
	ing, _ := newTestIngestor(t)

	provider := &fakeProvider{err: errors.New("mail provider unreachable")}
	_, err := ing.ProcessInbox(context.Background(), provider, "me@example.com")
	assert.ErrorContains(t, err, "mail provider unreachable")
}

func TestProcessInbox_EmptyMailSet(t *testing.T) {
	ing, _ := newTestIngestor(t)

	result, err := ing.ProcessInbox(context.Background(), &fakeProvider{}, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestProcessInbox_DiscardsUnknownDirection(t *testing.T) {
	ing, st := newTestIngestor(t)
	ctx := context.Background()

	provider := &fakeProvider{emails: []mail.RawEmail{{
		ID:   "msg-3",
		Body: encode("balance enquiry Amount: INR 750.00"),
	}}}

	result, err := ing.ProcessInbox(ctx, provider, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 0, Total: 1}, result)

	_, err = st.FindByReference(ctx, "me@example.com", "msg-3")
	assert.Error(t, err)
}

func TestProcessInbox_DefaultsDateToToday(t *testing.T) {
	ing, st := newTestIngestor(t)
	ctx := context.Background()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ing.now = func() time.Time { return fixed }

	provider := &fakeProvider{emails: []mail.RawEmail{{
		ID:   "msg-4",
		Body: encode("credited Amount: INR 50.00"),
	}}}

	result, err := ing.ProcessInbox(ctx, provider, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Total: 1}, result)

	txn, err := st.FindByReference(ctx, "me@example.com", "msg-4")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", txn.Date)
}
