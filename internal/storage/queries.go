package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AccountRow struct {
	ID           string
	OwnerID      string
	Name         string
	Type         string
	BalanceCents int64
	Currency     string
	Color        string
	Icon         string
	IsActive     bool
	Version      int64
	CreatedAt    int64
	UpdatedAt    int64
}

type TransactionRow struct {
	ID          string
	OwnerID     string
	Type        string
	Category    string
	AmountCents int64
	Description string
	OccurredAt  int64
	AccountID   string
	ToAccountID sql.NullString
	Tags        string
	Version     int64
	SyncStatus  string
	CreatedAt   int64
	UpdatedAt   int64
}

const accountColumns = `id, owner_id, name, type, balance_cents, currency, color, icon, is_active, version, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (AccountRow, error) {
	var i AccountRow
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Name,
		&i.Type,
		&i.BalanceCents,
		&i.Currency,
		&i.Color,
		&i.Icon,
		&i.IsActive,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listAccountsByOwner = `SELECT ` + accountColumns + `
FROM accounts
WHERE owner_id = ?
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListAccountsByOwner(ctx context.Context, ownerID string) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		i, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (AccountRow, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const getOwnedAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND owner_id = ?`

func (q *Queries) GetOwnedAccount(ctx context.Context, id, ownerID string) (AccountRow, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getOwnedAccount, id, ownerID))
}

const insertAccount = `INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAccount(ctx context.Context, arg AccountRow) error {
	_, err := q.db.ExecContext(ctx, insertAccount,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.Type,
		arg.BalanceCents,
		arg.Currency,
		arg.Color,
		arg.Icon,
		arg.IsActive,
		arg.Version,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateAccount = `UPDATE accounts
SET name = ?, type = ?, balance_cents = ?, currency = ?, color = ?, icon = ?, is_active = ?,
    version = version + 1, updated_at = ?
WHERE id = ? AND owner_id = ? AND version = ?`

// UpdateAccount returns the number of rows changed; zero means the row is
// gone or its version moved on.
func (q *Queries) UpdateAccount(ctx context.Context, arg AccountRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAccount,
		arg.Name,
		arg.Type,
		arg.BalanceCents,
		arg.Currency,
		arg.Color,
		arg.Icon,
		arg.IsActive,
		arg.UpdatedAt,
		arg.ID,
		arg.OwnerID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAccount = `DELETE FROM accounts WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id, ownerID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAccount, id, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionColumns = `id, owner_id, type, category, amount_cents, description, occurred_at, account_id, to_account_id, tags, version, sync_status, created_at, updated_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (TransactionRow, error) {
	var i TransactionRow
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Type,
		&i.Category,
		&i.AmountCents,
		&i.Description,
		&i.OccurredAt,
		&i.AccountID,
		&i.ToAccountID,
		&i.Tags,
		&i.Version,
		&i.SyncStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

// Optional filters are bound as NULL (or '') to disable them.
const transactionFilter = `owner_id = ?1
  AND (?2 = '' OR type = ?2)
  AND (?3 = '' OR category = ?3)
  AND (?4 = '' OR account_id = ?4)
  AND (?5 IS NULL OR occurred_at >= ?5)
  AND (?6 IS NULL OR occurred_at <= ?6)`

type TransactionFilterParams struct {
	OwnerID   string
	Type      string
	Category  string
	AccountID string
	From      sql.NullInt64
	To        sql.NullInt64
}

func (p TransactionFilterParams) args() []interface{} {
	return []interface{}{p.OwnerID, p.Type, p.Category, p.AccountID, p.From, p.To}
}

const listTransactions = `SELECT ` + transactionColumns + `
FROM transactions
WHERE ` + transactionFilter + `
ORDER BY occurred_at DESC, created_at DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context, arg TransactionFilterParams) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type AggregateTransactionsRow struct {
	GroupKey    string
	TotalAmount int64
	TxCount     int64
}

var aggregateColumns = map[GroupBy]string{
	GroupByCategory: "category",
	GroupByAccount:  "account_id",
	GroupByType:     "type",
}

const aggregateTransactions = `SELECT %[1]s, COALESCE(SUM(amount_cents), 0), COUNT(*)
FROM transactions
WHERE ` + transactionFilter + `
GROUP BY %[1]s
ORDER BY %[1]s`

func (q *Queries) AggregateTransactions(ctx context.Context, by GroupBy, arg TransactionFilterParams) ([]AggregateTransactionsRow, error) {
	column, ok := aggregateColumns[by]
	if !ok {
		return nil, fmt.Errorf("unsupported grouping %q", by)
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(aggregateTransactions, column), arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AggregateTransactionsRow
	for rows.Next() {
		var i AggregateTransactionsRow
		if err := rows.Scan(&i.GroupKey, &i.TotalAmount, &i.TxCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const getOwnedTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND owner_id = ?`

func (q *Queries) GetOwnedTransaction(ctx context.Context, id, ownerID string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getOwnedTransaction, id, ownerID))
}

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.OwnerID,
		arg.Type,
		arg.Category,
		arg.AmountCents,
		arg.Description,
		arg.OccurredAt,
		arg.AccountID,
		arg.ToAccountID,
		arg.Tags,
		arg.Version,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateTransaction = `UPDATE transactions
SET type = ?, category = ?, amount_cents = ?, description = ?, occurred_at = ?, account_id = ?,
    to_account_id = ?, tags = ?, version = version + 1, sync_status = 'pending', updated_at = ?
WHERE id = ? AND owner_id = ? AND version = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg TransactionRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type,
		arg.Category,
		arg.AmountCents,
		arg.Description,
		arg.OccurredAt,
		arg.AccountID,
		arg.ToAccountID,
		arg.Tags,
		arg.UpdatedAt,
		arg.ID,
		arg.OwnerID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id, ownerID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPendingSyncTransactions = `SELECT id, owner_id, version
FROM transactions
WHERE sync_status = 'pending'
ORDER BY updated_at ASC
LIMIT ?`

type PendingSyncRow struct {
	ID      string
	OwnerID string
	Version int64
}

func (q *Queries) GetPendingSyncTransactions(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var i PendingSyncRow
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Version); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markTransactionSynced = `UPDATE transactions SET sync_status = 'synced' WHERE id = ? AND version = ?`

func (q *Queries) MarkTransactionSynced(ctx context.Context, id string, version int64) error {
	_, err := q.db.ExecContext(ctx, markTransactionSynced, id, version)
	return err
}

const markTransactionSyncError = `UPDATE transactions SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkTransactionSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markTransactionSyncError, id)
	return err
}

const insertTombstone = `INSERT INTO sync_tombstones (transaction_id, owner_id, version, deleted_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (transaction_id) DO UPDATE SET version = excluded.version, deleted_at = excluded.deleted_at`

func (q *Queries) InsertTombstone(ctx context.Context, id, ownerID string, version, deletedAt int64) error {
	_, err := q.db.ExecContext(ctx, insertTombstone, id, ownerID, version, deletedAt)
	return err
}

const listTombstones = `SELECT transaction_id, owner_id, version
FROM sync_tombstones
ORDER BY deleted_at ASC
LIMIT ?`

func (q *Queries) ListTombstones(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, listTombstones, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var i PendingSyncRow
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Version); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTombstone = `DELETE FROM sync_tombstones WHERE transaction_id = ?`

func (q *Queries) DeleteTombstone(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteTombstone, id)
	return err
}
