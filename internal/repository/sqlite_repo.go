package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eco_api/internal/domain"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

// openSQLite opens a single-connection pool; SQLite serializes writers anyway
// and one connection keeps read-modify-write transactions free of SQLITE_BUSY.
func openSQLite(dsn string) (*sql.DB, error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		return nil, errors.New("empty sqlite dsn")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}

	r := &SQLiteRepo{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS payment_transactions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
			currency TEXT NOT NULL,
			metadata TEXT,
			status TEXT NOT NULL,
			gateway_status TEXT NOT NULL DEFAULT '',
			callback_url TEXT NOT NULL,
			authorization_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			paid_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_ptx_status_created ON payment_transactions(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_ptx_email ON payment_transactions(email);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if err := validateNew(t); err != nil {
		return err
	}

	now := r.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt

	var meta any
	if t.Metadata != nil {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}

	q := `
		INSERT INTO payment_transactions(
			reference,
			email,
			amount_minor,
			currency,
			metadata,
			status,
			gateway_status,
			callback_url,
			authorization_url,
			created_at,
			updated_at,
			paid_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := r.db.ExecContext(
		ctx, q,
		t.Reference,
		t.Email,
		t.AmountMinor,
		t.Currency,
		meta,
		string(t.Status),
		t.GatewayStatus,
		t.CallbackURL,
		t.AuthorizationURL,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
		formatTimePtr(t.PaidAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}

	return err
}

const selectColumns = `
	SELECT
		reference,
		email,
		amount_minor,
		currency,
		metadata,
		status,
		gateway_status,
		callback_url,
		authorization_url,
		created_at,
		updated_at,
		paid_at
	FROM payment_transactions
`

func (r *SQLiteRepo) Get(ctx context.Context, ref string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE reference = ?", ref)
	t, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *SQLiteRepo) Transition(ctx context.Context, ref string, to domain.TxStatus, opts TransitionOptions) (TransitionResult, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		res, err := r.transitionOnce(ctx, ref, to, opts)
		if errors.Is(err, errConcurrentUpdate) {
			continue
		}
		return res, err
	}
	return TransitionResult{}, fmt.Errorf("transition %s: %w", ref, errConcurrentUpdate)
}

func (r *SQLiteRepo) transitionOnce(ctx context.Context, ref string, to domain.TxStatus, opts TransitionOptions) (TransitionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return TransitionResult{}, err
	}
	defer tx.Rollback()

	t, err := scanTx(tx.QueryRowContext(ctx, selectColumns+" WHERE reference = ?", ref))
	if errors.Is(err, sql.ErrNoRows) {
		return TransitionResult{}, ErrNotFound
	}
	if err != nil {
		return TransitionResult{}, err
	}

	from := t.Status
	changed, err := applyTransition(t, to, opts, r.now().UTC())
	if err != nil || !changed {
		return TransitionResult{Tx: t, From: from}, err
	}

	// compare-and-swap on the status read above
	q := `
		UPDATE payment_transactions
		SET status = ?, gateway_status = ?, updated_at = ?, paid_at = ?
		WHERE reference = ? AND status = ?
	`
	res, err := tx.ExecContext(ctx, q,
		string(t.Status),
		t.GatewayStatus,
		formatTime(t.UpdatedAt),
		formatTimePtr(t.PaidAt),
		ref,
		string(from),
	)
	if err != nil {
		return TransitionResult{}, err
	}

	aff, _ := res.RowsAffected()
	if aff == 0 {
		return TransitionResult{}, errConcurrentUpdate
	}

	if err := tx.Commit(); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Tx: t, From: from, Changed: true}, nil
}

func (r *SQLiteRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	q := selectColumns + " WHERE 1 = 1"
	args := []any{}

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}

	if f.Email != "" {
		q += " AND email = ? COLLATE NOCASE"
		args = append(args, f.Email)
	}

	if !f.CreatedBefore.IsZero() {
		q += " AND created_at < ?"
		args = append(args, formatTime(f.CreatedBefore))
	}

	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}

		res = append(res, *t)
	}

	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTx(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var status string
	var meta *string
	var createdStr, updatedStr string
	var paidStr *string

	if err := s.Scan(
		&t.Reference,
		&t.Email,
		&t.AmountMinor,
		&t.Currency,
		&meta,
		&status,
		&t.GatewayStatus,
		&t.CallbackURL,
		&t.AuthorizationURL,
		&createdStr,
		&updatedStr,
		&paidStr,
	); err != nil {
		return nil, err
	}

	t.Status = domain.TxStatus(status)

	if meta != nil {
		m, err := decodeMetadata([]byte(*meta))
		if err != nil {
			return nil, err
		}
		t.Metadata = m
	}

	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	if paidStr != nil {
		pd, err := time.Parse(timeLayout, *paidStr)
		if err != nil {
			return nil, fmt.Errorf("parse paid_at: %w", err)
		}

		t.PaidAt = &pd
	}

	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
