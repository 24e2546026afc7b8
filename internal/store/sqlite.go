package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrDuplicateReference is returned by InsertTransaction when a transaction
// with the same (user, reference) pair already exists.
var ErrDuplicateReference = errors.New("duplicate transaction reference")

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            email TEXT PRIMARY KEY,
            created_at INTEGER NOT NULL,
            last_login INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            transaction_date TEXT NOT NULL,
            transaction_time TEXT,
            amount TEXT NOT NULL,
            transaction_type TEXT NOT NULL,
            sender TEXT,
            recipient TEXT,
            description TEXT,
            reference TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS inbox (
            id TEXT PRIMARY KEY,
            user_email TEXT NOT NULL,
            from_email TEXT NOT NULL,
            subject TEXT NOT NULL,
            raw BLOB NOT NULL,
            consumed INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_user_reference ON transactions(user_id, reference);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, transaction_date);`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_user_consumed ON inbox(user_email, consumed);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, email string, now time.Time) error {
	query := `INSERT INTO users (email, created_at, last_login)
        VALUES (?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET last_login = excluded.last_login;`
	_, err := s.db.ExecContext(ctx, query, email, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// InsertTransaction persists one transaction. The unique index on
// (user_id, reference) backs the idempotency guarantee; a violation is
// reported as ErrDuplicateReference so callers can treat the email as
// already processed.
func (s *Store) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO transactions
        (id, user_id, transaction_date, transaction_time, amount, transaction_type,
         sender, recipient, description, reference, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		txn.ID,
		txn.UserID,
		txn.Date,
		nullIfEmpty(txn.Time),
		txn.Amount.StringFixed(2),
		txn.Type,
		nullIfEmpty(txn.Sender),
		nullIfEmpty(txn.Recipient),
		nullIfEmpty(txn.Description),
		txn.Reference,
		txn.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// FindByReference returns the transaction persisted for the given mail
// reference, or sql.ErrNoRows when none exists.
func (s *Store) FindByReference(ctx context.Context, userID, reference string) (Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE user_id = ? AND reference = ?;`, userID, reference)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, sql.ErrNoRows
		}
		return Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns one page of a user's transactions, newest first
// by default, along with the total count for the user.
func (s *Store) ListTransactions(ctx context.Context, userID, sort string, offset, limit int32) ([]Transaction, int32, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions WHERE user_id = ?;`, userID).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	if totalCount > int64(^uint32(0)>>1) {
		totalCount = int64(^uint32(0) >> 1)
	}

	orderBy := " ORDER BY transaction_date DESC, id DESC"
	switch sort {
	case "oldest", "asc":
		orderBy = " ORDER BY transaction_date ASC, id ASC"
	}

	rows, err := s.db.QueryContext(ctx, selectTransaction+` WHERE user_id = ?`+orderBy+` LIMIT ? OFFSET ?;`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, int32(totalCount), nil
}

// Stats totals a user's transactions by direction. Amounts are summed as
// decimals in process to keep two-digit precision exact.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT transaction_type, amount FROM transactions WHERE user_id = ?;`, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var txnType, amount string
		if err := rows.Scan(&txnType, &amount); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return Stats{}, fmt.Errorf("stats: parse amount %q: %w", amount, err)
		}
		stats.Count++
		switch txnType {
		case "received":
			stats.Received = stats.Received.Add(value)
		case "sent":
			stats.Sent = stats.Sent.Add(value)
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	stats.Net = stats.Received.Sub(stats.Sent)
	return stats, nil
}

func (s *Store) InsertInboxMessage(ctx context.Context, message InboxMessage) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO inbox
        (id, user_email, from_email, subject, raw, consumed, created_at)
        VALUES (?, ?, ?, ?, ?, 0, ?);`,
		message.ID,
		message.UserEmail,
		message.From,
		message.Subject,
		message.Raw,
		message.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert inbox message: %w", err)
	}
	return nil
}

// ListUnconsumedInbox returns buffered raw messages for one user, oldest
// first, that no ingestion pass has consumed yet.
func (s *Store) ListUnconsumedInbox(ctx context.Context, userEmail string) ([]InboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_email, from_email, subject, raw, created_at
        FROM inbox WHERE user_email = ? AND consumed = 0 ORDER BY created_at ASC, id ASC;`, userEmail)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	defer rows.Close()

	var messages []InboxMessage
	for rows.Next() {
		var message InboxMessage
		var createdAt int64
		if err := rows.Scan(
			&message.ID,
			&message.UserEmail,
			&message.From,
			&message.Subject,
			&message.Raw,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan inbox message: %w", err)
		}
		message.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return messages, nil
}

func (s *Store) MarkInboxConsumed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE inbox SET consumed = 1 WHERE id IN (%s);`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("mark inbox consumed: %w", err)
	}
	return nil
}

const selectTransaction = `SELECT id, user_id, transaction_date, transaction_time, amount,
    transaction_type, sender, recipient, description, reference, created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var txn Transaction
	var txnTime, sender, recipient, description sql.NullString
	var amount string
	var createdAt int64
	if err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Date,
		&txnTime,
		&amount,
		&txn.Type,
		&sender,
		&recipient,
		&description,
		&txn.Reference,
		&createdAt,
	); err != nil {
		return Transaction{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	txn.Amount = value
	txn.Time = txnTime.String
	txn.Sender = sender.String
	txn.Recipient = recipient.String
	txn.Description = description.String
	txn.CreatedAt = time.Unix(createdAt, 0)
	return txn, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
