// Package memory provides an in-process Store used by tests and by
// DATA_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type syncStatus int

const (
	syncPending syncStatus = iota
	syncDone
	syncFailed
)

type tombstone struct {
	owner     string
	version   int64
	deletedAt time.Time
}

type state struct {
	accounts     map[string]core.Account
	transactions map[string]core.Transaction
	syncState    map[string]syncStatus
	tombstones   map[string]tombstone
}

func (s state) clone() state {
	out := state{
		accounts:     make(map[string]core.Account, len(s.accounts)),
		transactions: make(map[string]core.Transaction, len(s.transactions)),
		syncState:    make(map[string]syncStatus, len(s.syncState)),
		tombstones:   make(map[string]tombstone, len(s.tombstones)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.transactions {
		v.Tags = append([]string(nil), v.Tags...)
		out.transactions[k] = v
	}
	for k, v := range s.syncState {
		out.syncState[k] = v
	}
	for k, v := range s.tombstones {
		out.tombstones[k] = v
	}
	return out
}

// Store keeps everything in maps. Units of work run against a private copy
// of the state that replaces the live one only when the unit succeeds, so
// readers never observe a partial unit. Writers are serialized.
type Store struct {
	mu       sync.RWMutex
	atomicMu sync.Mutex
	st       state
	now      func() time.Time

	// failNext holds one-shot write failures injected by FailOn.
	failMu   sync.Mutex
	failNext map[string]error
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st: state{
			accounts:     map[string]core.Account{},
			transactions: map[string]core.Transaction{},
			syncState:    map[string]syncStatus{},
			tombstones:   map[string]tombstone{},
		},
		now:      time.Now,
		failNext: map[string]error{},
	}
}

// FailOn makes the next call of op ("SaveAccount", "SaveTransaction",
// "DeleteTransaction", "DeleteAccount") fail with err.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return core.StoreFailure(op, err)
	}
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.atomicMu.Lock()
	defer s.atomicMu.Unlock()

	if err := ctx.Err(); err != nil {
		return core.StoreFailure("begin transaction", err)
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &unit{store: s, st: &work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// write applies fn to the live state outside of a unit of work.
func (s *Store) write(fn func(st *state) error) error {
	s.atomicMu.Lock()
	defer s.atomicMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

func (s *Store) FindAccounts(_ context.Context, owner string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findAccounts(owner), nil
}

func (s *Store) FindAccountByID(_ context.Context, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findAccount(id, "")
}

func (s *Store) FindOwnedAccount(_ context.Context, id, owner string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findAccount(id, owner)
}

func (s *Store) SaveAccount(_ context.Context, a *core.Account) error {
	if err := s.injected("SaveAccount"); err != nil {
		return err
	}
	return s.write(func(st *state) error { return st.saveAccount(a) })
}

func (s *Store) DeleteAccount(_ context.Context, id, owner string) error {
	if err := s.injected("DeleteAccount"); err != nil {
		return err
	}
	return s.write(func(st *state) error { return st.deleteAccount(id, owner) })
}

func (s *Store) FindTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findTransactions(f), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findTransaction(id, "")
}

func (s *Store) FindOwnedTransaction(_ context.Context, id, owner string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findTransaction(id, owner)
}

func (s *Store) SaveTransaction(_ context.Context, tx *core.Transaction) error {
	if err := s.injected("SaveTransaction"); err != nil {
		return err
	}
	return s.write(func(st *state) error { return st.saveTransaction(tx) })
}

func (s *Store) DeleteTransaction(_ context.Context, id, owner string) error {
	if err := s.injected("DeleteTransaction"); err != nil {
		return err
	}
	return s.write(func(st *state) error { return st.deleteTransaction(id, owner, s.now()) })
}

func (s *Store) AggregateTransactions(_ context.Context, by storage.GroupBy, f storage.TransactionFilter) ([]storage.AggregateRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.aggregate(by, f)
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]storage.PendingSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deleted, pending []storage.PendingSync
	for id, t := range s.st.tombstones {
		deleted = append(deleted, storage.PendingSync{ID: id, Owner: t.owner, Version: t.version, Deleted: true})
	}
	sort.Slice(deleted, func(i, j int) bool {
		return s.st.tombstones[deleted[i].ID].deletedAt.Before(s.st.tombstones[deleted[j].ID].deletedAt)
	})
	for id, status := range s.st.syncState {
		if status != syncPending {
			continue
		}
		tx := s.st.transactions[id]
		pending = append(pending, storage.PendingSync{ID: id, Owner: tx.Owner, Version: tx.Version})
	}
	sort.Slice(pending, func(i, j int) bool {
		return s.st.transactions[pending[i].ID].UpdatedAt.Before(s.st.transactions[pending[j].ID].UpdatedAt)
	})

	out := append(deleted, pending...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string, version int64) error {
	return s.write(func(st *state) error {
		if tx, ok := st.transactions[id]; ok && tx.Version == version {
			st.syncState[id] = syncDone
		}
		return nil
	})
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	return s.write(func(st *state) error {
		if _, ok := st.transactions[id]; ok {
			st.syncState[id] = syncFailed
		}
		return nil
	})
}

func (s *Store) ClearTombstone(_ context.Context, id string) error {
	return s.write(func(st *state) error {
		delete(st.tombstones, id)
		return nil
	})
}

// unit is the Tx handed to Atomic callbacks. It works on the unit's private
// copy of the state without locking.
type unit struct {
	store *Store
	st    *state
}

func (u *unit) FindAccounts(_ context.Context, owner string) ([]core.Account, error) {
	return u.st.findAccounts(owner), nil
}

func (u *unit) FindAccountByID(_ context.Context, id string) (core.Account, error) {
	return u.st.findAccount(id, "")
}

func (u *unit) FindOwnedAccount(_ context.Context, id, owner string) (core.Account, error) {
	return u.st.findAccount(id, owner)
}

func (u *unit) SaveAccount(_ context.Context, a *core.Account) error {
	if err := u.store.injected("SaveAccount"); err != nil {
		return err
	}
	return u.st.saveAccount(a)
}

func (u *unit) DeleteAccount(_ context.Context, id, owner string) error {
	if err := u.store.injected("DeleteAccount"); err != nil {
		return err
	}
	return u.st.deleteAccount(id, owner)
}

func (u *unit) FindTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return u.st.findTransactions(f), nil
}

func (u *unit) FindTransactionByID(_ context.Context, id string) (core.Transaction, error) {
	return u.st.findTransaction(id, "")
}

func (u *unit) FindOwnedTransaction(_ context.Context, id, owner string) (core.Transaction, error) {
	return u.st.findTransaction(id, owner)
}

func (u *unit) SaveTransaction(_ context.Context, tx *core.Transaction) error {
	if err := u.store.injected("SaveTransaction"); err != nil {
		return err
	}
	return u.st.saveTransaction(tx)
}

func (u *unit) DeleteTransaction(_ context.Context, id, owner string) error {
	if err := u.store.injected("DeleteTransaction"); err != nil {
		return err
	}
	return u.st.deleteTransaction(id, owner, u.store.now())
}

func (u *unit) AggregateTransactions(_ context.Context, by storage.GroupBy, f storage.TransactionFilter) ([]storage.AggregateRow, error) {
	return u.st.aggregate(by, f)
}

func (st *state) findAccounts(owner string) []core.Account {
	out := make([]core.Account, 0)
	for _, a := range st.accounts {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// findAccount looks up id; a non-empty owner must also match.
func (st *state) findAccount(id, owner string) (core.Account, error) {
	a, ok := st.accounts[id]
	if !ok || (owner != "" && a.Owner != owner) {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (st *state) saveAccount(a *core.Account) error {
	if a.Version == 0 {
		if _, exists := st.accounts[a.ID]; exists {
			return core.StoreFailure("insert account", fmt.Errorf("duplicate id %q", a.ID))
		}
		a.Version = 1
		st.accounts[a.ID] = *a
		return nil
	}

	current, ok := st.accounts[a.ID]
	if !ok || current.Owner != a.Owner || current.Version != a.Version {
		return fmt.Errorf("account %q at version %d: %w", a.ID, a.Version, core.ErrConflict)
	}
	a.Version++
	st.accounts[a.ID] = *a
	return nil
}

func (st *state) deleteAccount(id, owner string) error {
	a, ok := st.accounts[id]
	if !ok || a.Owner != owner {
		return core.NotFound("account", id)
	}
	delete(st.accounts, id)
	return nil
}

func matches(tx core.Transaction, f storage.TransactionFilter) bool {
	if tx.Owner != f.Owner {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	return true
}

func (st *state) findTransactions(f storage.TransactionFilter) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range st.transactions {
		if matches(tx, f) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

// findTransaction looks up id; a non-empty owner must also match.
func (st *state) findTransaction(id, owner string) (core.Transaction, error) {
	tx, ok := st.transactions[id]
	if !ok || (owner != "" && tx.Owner != owner) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return tx, nil
}

func (st *state) saveTransaction(tx *core.Transaction) error {
	if tx.Version == 0 {
		if _, exists := st.transactions[tx.ID]; exists {
			return core.StoreFailure("insert transaction", fmt.Errorf("duplicate id %q", tx.ID))
		}
		tx.Version = 1
	} else {
		current, ok := st.transactions[tx.ID]
		if !ok || current.Owner != tx.Owner || current.Version != tx.Version {
			return fmt.Errorf("transaction %q at version %d: %w", tx.ID, tx.Version, core.ErrConflict)
		}
		tx.Version++
	}
	stored := *tx
	stored.Tags = append([]string(nil), tx.Tags...)
	st.transactions[tx.ID] = stored
	st.syncState[tx.ID] = syncPending
	return nil
}

func (st *state) deleteTransaction(id, owner string, at time.Time) error {
	tx, ok := st.transactions[id]
	if !ok || tx.Owner != owner {
		return core.NotFound("transaction", id)
	}
	delete(st.transactions, id)
	delete(st.syncState, id)
	st.tombstones[id] = tombstone{owner: owner, version: tx.Version, deletedAt: at}
	return nil
}

func (st *state) aggregate(by storage.GroupBy, f storage.TransactionFilter) ([]storage.AggregateRow, error) {
	groups := map[string]*storage.AggregateRow{}
	for _, tx := range st.transactions {
		if !matches(tx, f) {
			continue
		}
		var key string
		switch by {
		case storage.GroupByCategory:
			key = tx.Category
		case storage.GroupByAccount:
			key = tx.AccountID
		case storage.GroupByType:
			key = string(tx.Type)
		default:
			return nil, core.StoreFailure("aggregate transactions", fmt.Errorf("unsupported grouping %q", by))
		}
		row, ok := groups[key]
		if !ok {
			row = &storage.AggregateRow{Key: key}
			groups[key] = row
		}
		row.Sum = row.Sum.Add(tx.Amount)
		row.Count++
	}

	out := make([]storage.AggregateRow, 0, len(groups))
	for _, row := range groups {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
