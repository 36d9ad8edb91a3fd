package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// TransactionFilter narrows transaction lookups. Empty strings and zero times
// mean "no constraint". AccountID matches the source account only.
type TransactionFilter struct {
	Owner     string
	Type      core.TransactionType
	Category  string
	AccountID string
	From      time.Time
	To        time.Time
}

// GroupBy selects the aggregation key for AggregateTransactions.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByAccount  GroupBy = "account"
	GroupByType     GroupBy = "type"
)

// AggregateRow is one group of an aggregation.
type AggregateRow struct {
	Key   string
	Sum   core.Money
	Count int
}

// AccountStore persists accounts.
//
// SaveAccount inserts when Version is zero and otherwise updates guarded by
// the stored version; a stale version yields core.ErrConflict. On success the
// account's Version is advanced in place.
type AccountStore interface {
	FindAccounts(ctx context.Context, owner string) ([]core.Account, error)
	FindAccountByID(ctx context.Context, id string) (core.Account, error)
	FindOwnedAccount(ctx context.Context, id, owner string) (core.Account, error)
	SaveAccount(ctx context.Context, a *core.Account) error
	DeleteAccount(ctx context.Context, id, owner string) error
}

// TransactionStore persists transactions. FindTransactions returns newest
// first. Saving marks the record pending for the ledger mirror and deleting
// leaves a tombstone for it.
type TransactionStore interface {
	FindTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (core.Transaction, error)
	FindOwnedTransaction(ctx context.Context, id, owner string) (core.Transaction, error)
	SaveTransaction(ctx context.Context, tx *core.Transaction) error
	DeleteTransaction(ctx context.Context, id, owner string) error
	AggregateTransactions(ctx context.Context, by GroupBy, f TransactionFilter) ([]AggregateRow, error)
}

// Tx is the view of the store available inside a unit of work.
type Tx interface {
	AccountStore
	TransactionStore
}

// PendingSync is a transaction whose mirror row is out of date.
type PendingSync struct {
	ID      string
	Owner   string
	Version int64
	Deleted bool
}

// SyncTracker exposes the mirror bookkeeping used by the sync worker.
type SyncTracker interface {
	PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
	// MarkSynced clears the pending flag only if the record is still at
	// version, so a newer edit stays pending.
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
	ClearTombstone(ctx context.Context, id string) error
}

// Store is the full persistence port.
//
// Atomic runs fn as a single unit of work: either every write fn performs is
// committed or none is. fn must use only the Tx it receives.
type Store interface {
	Tx
	SyncTracker
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
