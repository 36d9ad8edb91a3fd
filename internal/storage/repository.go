package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the SQLite-backed Store. Units of work run as
// BEGIN IMMEDIATE transactions so concurrent writers serialize on the
// database write lock instead of failing at commit.
type SQLiteRepository struct {
	sqlStore
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		sqlStore: sqlStore{q: New(db)},
		db:       db,
	}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Atomic implements Store.
func (r *SQLiteRepository) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StoreFailure("begin transaction", err)
	}

	if err := fn(ctx, &sqlStore{q: r.q.WithTx(sqlTx)}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to roll back unit of work", log.FieldComponent, log.ComponentStorage, "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return core.StoreFailure("commit transaction", err)
	}
	return nil
}

// PendingSync implements SyncTracker. Tombstones come first so a delete is
// never overtaken by a stale upsert of the same id.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	tombstones, err := r.q.ListTombstones(ctx, int64(limit))
	if err != nil {
		return nil, core.StoreFailure("list tombstones", err)
	}

	out := make([]PendingSync, 0, limit)
	for _, t := range tombstones {
		out = append(out, PendingSync{ID: t.ID, Owner: t.OwnerID, Version: t.Version, Deleted: true})
	}
	if remaining := limit - len(out); remaining > 0 {
		rows, err := r.q.GetPendingSyncTransactions(ctx, int64(remaining))
		if err != nil {
			return nil, core.StoreFailure("get pending sync transactions", err)
		}
		for _, t := range rows {
			out = append(out, PendingSync{ID: t.ID, Owner: t.OwnerID, Version: t.Version})
		}
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	if err := r.q.MarkTransactionSynced(ctx, id, version); err != nil {
		return core.StoreFailure("mark transaction synced", err)
	}
	slog.DebugContext(ctx, "Transaction marked as synced", log.FieldComponent, log.ComponentStorage, "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.q.MarkTransactionSyncError(ctx, id); err != nil {
		return core.StoreFailure("mark transaction sync error", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", log.FieldComponent, log.ComponentStorage, "id", id)
	return nil
}

func (r *SQLiteRepository) ClearTombstone(ctx context.Context, id string) error {
	if err := r.q.DeleteTombstone(ctx, id); err != nil {
		return core.StoreFailure("delete tombstone", err)
	}
	return nil
}

// sqlStore implements Tx over either the pool or an open transaction.
type sqlStore struct {
	q *Queries
}

func (s *sqlStore) FindAccounts(ctx context.Context, owner string) ([]core.Account, error) {
	rows, err := s.q.ListAccountsByOwner(ctx, owner)
	if err != nil {
		return nil, core.StoreFailure("list accounts", err)
	}
	out := make([]core.Account, len(rows))
	for i, row := range rows {
		out[i] = accountFromRow(row)
	}
	return out, nil
}

func (s *sqlStore) FindAccountByID(ctx context.Context, id string) (core.Account, error) {
	row, err := s.q.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, notFoundOr("account", id, "get account", err)
	}
	return accountFromRow(row), nil
}

func (s *sqlStore) FindOwnedAccount(ctx context.Context, id, owner string) (core.Account, error) {
	row, err := s.q.GetOwnedAccount(ctx, id, owner)
	if err != nil {
		return core.Account{}, notFoundOr("account", id, "get account", err)
	}
	return accountFromRow(row), nil
}

func (s *sqlStore) SaveAccount(ctx context.Context, a *core.Account) error {
	row := accountToRow(*a)
	if a.Version == 0 {
		row.Version = 1
		if err := s.q.InsertAccount(ctx, row); err != nil {
			return core.StoreFailure("insert account", err)
		}
		a.Version = 1
		return nil
	}

	n, err := s.q.UpdateAccount(ctx, row)
	if err != nil {
		return core.StoreFailure("update account", err)
	}
	if n == 0 {
		return fmt.Errorf("account %q at version %d: %w", a.ID, a.Version, core.ErrConflict)
	}
	a.Version++
	return nil
}

func (s *sqlStore) DeleteAccount(ctx context.Context, id, owner string) error {
	n, err := s.q.DeleteAccount(ctx, id, owner)
	if err != nil {
		return core.StoreFailure("delete account", err)
	}
	if n == 0 {
		return core.NotFound("account", id)
	}
	return nil
}

func (s *sqlStore) FindTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	rows, err := s.q.ListTransactions(ctx, filterParams(f))
	if err != nil {
		return nil, core.StoreFailure("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *sqlStore) FindTransactionByID(ctx context.Context, id string) (core.Transaction, error) {
	row, err := s.q.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, notFoundOr("transaction", id, "get transaction", err)
	}
	return transactionFromRow(row)
}

func (s *sqlStore) FindOwnedTransaction(ctx context.Context, id, owner string) (core.Transaction, error) {
	row, err := s.q.GetOwnedTransaction(ctx, id, owner)
	if err != nil {
		return core.Transaction{}, notFoundOr("transaction", id, "get transaction", err)
	}
	return transactionFromRow(row)
}

func (s *sqlStore) SaveTransaction(ctx context.Context, tx *core.Transaction) error {
	row, err := transactionToRow(*tx)
	if err != nil {
		return err
	}
	if tx.Version == 0 {
		row.Version = 1
		if err := s.q.InsertTransaction(ctx, row); err != nil {
			return core.StoreFailure("insert transaction", err)
		}
		tx.Version = 1
		return nil
	}

	n, err := s.q.UpdateTransaction(ctx, row)
	if err != nil {
		return core.StoreFailure("update transaction", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %q at version %d: %w", tx.ID, tx.Version, core.ErrConflict)
	}
	tx.Version++
	return nil
}

func (s *sqlStore) DeleteTransaction(ctx context.Context, id, owner string) error {
	existing, err := s.q.GetOwnedTransaction(ctx, id, owner)
	if err != nil {
		return notFoundOr("transaction", id, "get transaction", err)
	}
	if _, err := s.q.DeleteTransaction(ctx, id, owner); err != nil {
		return core.StoreFailure("delete transaction", err)
	}
	if err := s.q.InsertTombstone(ctx, id, owner, existing.Version, time.Now().UnixMilli()); err != nil {
		return core.StoreFailure("insert tombstone", err)
	}
	return nil
}

func (s *sqlStore) AggregateTransactions(ctx context.Context, by GroupBy, f TransactionFilter) ([]AggregateRow, error) {
	rows, err := s.q.AggregateTransactions(ctx, by, filterParams(f))
	if err != nil {
		return nil, core.StoreFailure("aggregate transactions", err)
	}
	out := make([]AggregateRow, len(rows))
	for i, row := range rows {
		out[i] = AggregateRow{Key: row.GroupKey, Sum: core.Cents(row.TotalAmount), Count: int(row.TxCount)}
	}
	return out, nil
}

func notFoundOr(kind, id, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(kind, id)
	}
	return core.StoreFailure(op, err)
}

func filterParams(f TransactionFilter) TransactionFilterParams {
	p := TransactionFilterParams{
		OwnerID:   f.Owner,
		Type:      string(f.Type),
		Category:  f.Category,
		AccountID: f.AccountID,
	}
	if !f.From.IsZero() {
		p.From = sql.NullInt64{Int64: f.From.UnixMilli(), Valid: true}
	}
	if !f.To.IsZero() {
		p.To = sql.NullInt64{Int64: f.To.UnixMilli(), Valid: true}
	}
	return p
}

func accountFromRow(row AccountRow) core.Account {
	return core.Account{
		ID:        row.ID,
		Owner:     row.OwnerID,
		Name:      row.Name,
		Type:      core.AccountType(row.Type),
		Balance:   core.Cents(row.BalanceCents),
		Currency:  row.Currency,
		Color:     row.Color,
		Icon:      row.Icon,
		Active:    row.IsActive,
		Version:   row.Version,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
	}
}

func accountToRow(a core.Account) AccountRow {
	return AccountRow{
		ID:           a.ID,
		OwnerID:      a.Owner,
		Name:         a.Name,
		Type:         string(a.Type),
		BalanceCents: a.Balance.Cents,
		Currency:     a.Currency,
		Color:        a.Color,
		Icon:         a.Icon,
		IsActive:     a.Active,
		Version:      a.Version,
		CreatedAt:    a.CreatedAt.UnixMilli(),
		UpdatedAt:    a.UpdatedAt.UnixMilli(),
	}
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	var tags []string
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
			return core.Transaction{}, core.StoreFailure("decode tags", err)
		}
	}
	return core.Transaction{
		ID:          row.ID,
		Owner:       row.OwnerID,
		Type:        core.TransactionType(row.Type),
		Category:    row.Category,
		Amount:      core.Cents(row.AmountCents),
		Description: row.Description,
		Date:        time.UnixMilli(row.OccurredAt).UTC(),
		AccountID:   row.AccountID,
		ToAccountID: row.ToAccountID.String,
		Tags:        tags,
		Version:     row.Version,
		CreatedAt:   time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(row.UpdatedAt).UTC(),
	}, nil
}

func transactionToRow(tx core.Transaction) (TransactionRow, error) {
	tags := tx.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return TransactionRow{}, core.StoreFailure("encode tags", err)
	}
	return TransactionRow{
		ID:          tx.ID,
		OwnerID:     tx.Owner,
		Type:        string(tx.Type),
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		Description: tx.Description,
		OccurredAt:  tx.Date.UnixMilli(),
		AccountID:   tx.AccountID,
		ToAccountID: sql.NullString{String: tx.ToAccountID, Valid: tx.ToAccountID != ""},
		Tags:        string(encoded),
		Version:     tx.Version,
		CreatedAt:   tx.CreatedAt.UnixMilli(),
		UpdatedAt:   tx.UpdatedAt.UnixMilli(),
	}, nil
}
