package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema(ctx))
	return st
}

func sampleTransaction(id, user, reference string) Transaction {
	return Transaction{
		ID:        id,
		UserID:    user,
		Date:      "2024-03-05",
		Time:      "10:30",
		Amount:    decimal.RequireFromString("500.00"),
		Type:      "received",
		Sender:    "John Doe",
		Reference: reference,
		CreatedAt: time.Now(),
	}
}

func TestInsertAndFindTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	txn := sampleTransaction("t1", "me@example.com", "ref-1")
	require.NoError(t, st.InsertTransaction(ctx, txn))

	found, err := st.FindByReference(ctx, "me@example.com", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", found.ID)
	assert.Equal(t, "500.00", found.Amount.StringFixed(2))
	assert.Equal(t, "received", found.Type)
	assert.Equal(t, "John Doe", found.Sender)
	assert.Equal(t, "", found.Recipient)
	assert.Equal(t, "10:30", found.Time)
}

func TestFindByReference_NoRows(t *testing.T) {
	st := newTestStore(t)

	_, err := st.FindByReference(context.Background(), "me@example.com", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInsertTransaction_DuplicateReference(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleTransaction("t1", "me@example.com", "ref-1")))

	err := st.InsertTransaction(ctx, sampleTransaction("t2", "me@example.com", "ref-1"))
	assert.ErrorIs(t, err, ErrDuplicateReference)

	// same reference under another user is a different transaction
	require.NoError(t, st.InsertTransaction(ctx, sampleTransaction("t3", "other@example.com", "ref-1")))
}

func TestListTransactions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		txn := sampleTransaction(string(rune('a'+i)), "me@example.com", date)
		txn.Date = date
		require.NoError(t, st.InsertTransaction(ctx, txn))
	}

	newest, total, err := st.ListTransactions(ctx, "me@example.com", "newest", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, newest, 3)
	assert.Equal(t, "2024-01-03", newest[0].Date)
	assert.Equal(t, "2024-01-01", newest[2].Date)

	oldest, _, err := st.ListTransactions(ctx, "me@example.com", "oldest", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", oldest[0].Date)

	page, total, err := st.ListTransactions(ctx, "me@example.com", "newest", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-01-02", page[0].Date)

	none, total, err := st.ListTransactions(ctx, "nobody@example.com", "newest", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, int32(0), total)
}

func TestStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in1 := sampleTransaction("t1", "me@example.com", "r1")
	in2 := sampleTransaction("t2", "me@example.com", "r2")
	in2.Amount = decimal.RequireFromString("100.50")
	out := sampleTransaction("t3", "me@example.com", "r3")
	out.Type = "sent"
	out.Amount = decimal.RequireFromString("200.25")

	for _, txn := range []Transaction{in1, in2, out} {
		require.NoError(t, st.InsertTransaction(ctx, txn))
	}

	stats, err := st.Stats(ctx, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, "600.50", stats.Received.StringFixed(2))
	assert.Equal(t, "200.25", stats.Sent.StringFixed(2))
	assert.Equal(t, "400.25", stats.Net.StringFixed(2))
}

func TestInbox(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := InboxMessage{
		ID:        "m1",
		UserEmail: "me@example.com",
		From:      "alerts@yourbank.com",
		Subject:   "Credit Alert",
		Raw:       []byte("raw message one"),
		CreatedAt: time.Unix(1000, 0),
	}
	second := first
	second.ID = "m2"
	second.CreatedAt = time.Unix(2000, 0)
	require.NoError(t, st.InsertInboxMessage(ctx, first))
	require.NoError(t, st.InsertInboxMessage(ctx, second))

	messages, err := st.ListUnconsumedInbox(ctx, "me@example.com")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID) // oldest first
	assert.Equal(t, []byte("raw message one"), messages[0].Raw)

	require.NoError(t, st.MarkInboxConsumed(ctx, []string{"m1"}))

	messages, err = st.ListUnconsumedInbox(ctx, "me@example.com")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m2", messages[0].ID)

	require.NoError(t, st.MarkInboxConsumed(ctx, nil))
}
