// Package storagetest holds the behavioural suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func account(id, owner string, balance int64) *core.Account {
	return &core.Account{
		ID:        id,
		Owner:     owner,
		Name:      "Account " + id,
		Type:      core.AccountBank,
		Balance:   core.Cents(balance),
		Currency:  core.DefaultCurrency,
		Color:     core.DefaultColor,
		Icon:      core.DefaultIcon,
		Active:    true,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func transaction(id, owner string, typ core.TransactionType, amount int64, day int, src, dst string) *core.Transaction {
	return &core.Transaction{
		ID:          id,
		Owner:       owner,
		Type:        typ,
		Category:    "Food",
		Amount:      core.Cents(amount),
		Date:        base.AddDate(0, 0, day),
		AccountID:   src,
		ToAccountID: dst,
		Tags:        []string{"t"},
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

// Run exercises newStore against the storage.Store contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("AccountRoundTrip", func(t *testing.T) { testAccountRoundTrip(t, newStore(t)) })
	t.Run("AccountVersionConflict", func(t *testing.T) { testAccountVersionConflict(t, newStore(t)) })
	t.Run("OwnershipScoping", func(t *testing.T) { testOwnershipScoping(t, newStore(t)) })
	t.Run("TransactionFilters", func(t *testing.T) { testTransactionFilters(t, newStore(t)) })
	t.Run("Aggregate", func(t *testing.T) { testAggregate(t, newStore(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("SyncBookkeeping", func(t *testing.T) { testSyncBookkeeping(t, newStore(t)) })
}

func testAccountRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := account("a1", "u1", 1000)
	require.NoError(t, s.SaveAccount(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	got, err := s.FindAccountByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Account a1", got.Name)
	assert.Equal(t, int64(1000), got.Balance.Cents)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(base))

	got.Balance = core.Cents(250)
	require.NoError(t, s.SaveAccount(ctx, &got))
	assert.Equal(t, int64(2), got.Version)

	again, err := s.FindOwnedAccount(ctx, "a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), again.Balance.Cents)

	require.NoError(t, s.DeleteAccount(ctx, "a1", "u1"))
	_, err = s.FindAccountByID(ctx, "a1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "a1", "u1"), core.ErrNotFound)
}

func testAccountVersionConflict(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, account("a1", "u1", 0)))

	first, err := s.FindAccountByID(ctx, "a1")
	require.NoError(t, err)
	stale := first

	first.Balance = core.Cents(10)
	require.NoError(t, s.SaveAccount(ctx, &first))

	stale.Balance = core.Cents(20)
	assert.ErrorIs(t, s.SaveAccount(ctx, &stale), core.ErrConflict)

	got, err := s.FindAccountByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Balance.Cents)
}

func testOwnershipScoping(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, account("a1", "u1", 0)))
	require.NoError(t, s.SaveAccount(ctx, account("b1", "u2", 0)))
	require.NoError(t, s.SaveTransaction(ctx, transaction("t1", "u1", core.Income, 100, 0, "a1", "")))

	_, err := s.FindOwnedAccount(ctx, "a1", "u2")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindOwnedTransaction(ctx, "t1", "u2")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "t1", "u2"), core.ErrNotFound)

	accounts, err := s.FindAccounts(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "b1", accounts[0].ID)

	txs, err := s.FindTransactions(ctx, storage.TransactionFilter{Owner: "u2"})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func testTransactionFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed := []*core.Transaction{
		transaction("t1", "u1", core.Income, 500, 0, "a", ""),
		transaction("t2", "u1", core.Expense, 200, 1, "a", ""),
		transaction("t3", "u1", core.Expense, 300, 2, "b", ""),
		transaction("t4", "u1", core.Transfer, 50, 3, "a", "b"),
	}
	seed[2].Category = "Rent"
	for _, tx := range seed {
		require.NoError(t, s.SaveTransaction(ctx, tx))
	}

	all, err := s.FindTransactions(ctx, storage.TransactionFilter{Owner: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"t4", "t3", "t2", "t1"}, ids(all), "newest first")
	assert.Equal(t, "b", all[0].ToAccountID)
	assert.Equal(t, []string{"t"}, all[0].Tags)

	cases := []struct {
		name string
		f    storage.TransactionFilter
		want []string
	}{
		{"type", storage.TransactionFilter{Owner: "u1", Type: core.Expense}, []string{"t3", "t2"}},
		{"category", storage.TransactionFilter{Owner: "u1", Category: "Rent"}, []string{"t3"}},
		{"source account only", storage.TransactionFilter{Owner: "u1", AccountID: "b"}, []string{"t3"}},
		{"from", storage.TransactionFilter{Owner: "u1", From: base.AddDate(0, 0, 2)}, []string{"t4", "t3"}},
		{"to inclusive", storage.TransactionFilter{Owner: "u1", To: base.AddDate(0, 0, 1)}, []string{"t2", "t1"}},
	}
	for _, tc := range cases {
		got, err := s.FindTransactions(ctx, tc.f)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, ids(got), tc.name)
	}
}

func testAggregate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, tx := range []*core.Transaction{
		transaction("t1", "u1", core.Expense, 200, 0, "a", ""),
		transaction("t2", "u1", core.Expense, 300, 1, "a", ""),
		transaction("t3", "u1", core.Income, 1000, 1, "b", ""),
		transaction("t4", "u2", core.Expense, 999, 1, "z", ""),
	} {
		require.NoError(t, s.SaveTransaction(ctx, tx))
	}

	rows, err := s.AggregateTransactions(ctx, storage.GroupByAccount, storage.TransactionFilter{Owner: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []storage.AggregateRow{
		{Key: "a", Sum: core.Cents(500), Count: 2},
		{Key: "b", Sum: core.Cents(1000), Count: 1},
	}, rows)

	rows, err = s.AggregateTransactions(ctx, storage.GroupByType, storage.TransactionFilter{Owner: "u1", To: base})
	require.NoError(t, err)
	assert.Equal(t, []storage.AggregateRow{{Key: "expense", Sum: core.Cents(200), Count: 1}}, rows)
}

func testAtomicRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, account("a1", "u1", 100)))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.FindOwnedAccount(ctx, "a1", "u1")
		if err != nil {
			return err
		}
		a.Balance = core.Cents(0)
		if err := tx.SaveAccount(ctx, &a); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, transaction("t1", "u1", core.Expense, 100, 0, "a1", "")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := s.FindAccountByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance.Cents, "balance write rolled back")
	assert.Equal(t, int64(1), a.Version)
	_, err = s.FindTransactionByID(ctx, "t1")
	assert.ErrorIs(t, err, core.ErrNotFound, "transaction insert rolled back")

	err = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SaveTransaction(ctx, transaction("t2", "u1", core.Expense, 100, 0, "a1", ""))
	})
	require.NoError(t, err)
	_, err = s.FindTransactionByID(ctx, "t2")
	assert.NoError(t, err)
}

func testSyncBookkeeping(t *testing.T, s storage.Store) {
	ctx := context.Background()
	t1 := transaction("t1", "u1", core.Expense, 100, 0, "a", "")
	t2 := transaction("t2", "u1", core.Expense, 100, 0, "a", "")
	require.NoError(t, s.SaveTransaction(ctx, t1))
	require.NoError(t, s.SaveTransaction(ctx, t2))

	pending, err := s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// a newer edit keeps the record pending
	t1.Amount = core.Cents(150)
	require.NoError(t, s.SaveTransaction(ctx, t1))
	require.NoError(t, s.MarkSynced(ctx, "t1", 1))
	require.NoError(t, s.MarkSynced(ctx, "t2", 1))

	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, storage.PendingSync{ID: "t1", Owner: "u1", Version: 2}, pending[0])

	require.NoError(t, s.MarkSynced(ctx, "t1", 2))
	require.NoError(t, s.DeleteTransaction(ctx, "t2", "u1"))

	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, storage.PendingSync{ID: "t2", Owner: "u1", Version: 1, Deleted: true}, pending[0])

	require.NoError(t, s.ClearTombstone(ctx, "t2"))
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
