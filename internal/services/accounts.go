package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// AccountService manages accounts. A balance is set once at creation; after
// that only the ledger moves it.
type AccountService struct {
	store storage.Store
	cache Invalidator
	now   func() time.Time
	newID func() string
}

func NewAccountService(store storage.Store, cache Invalidator) *AccountService {
	return &AccountService{store: store, cache: cache, now: time.Now, newID: uuid.NewString}
}

// WithClock overrides the time and id sources; used by tests.
func (s *AccountService) WithClock(now func() time.Time, newID func() string) *AccountService {
	s.now = now
	s.newID = newID
	return s
}

func (s *AccountService) Create(ctx context.Context, owner string, in core.AccountInput) (core.Account, error) {
	a := in.Account(s.newID(), owner, s.now())
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SaveAccount(ctx, &a)
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created",
		log.FieldComponent, log.ComponentAccounts,
		log.FieldOperation, log.OpCreate,
		"account_id", a.ID,
		"user_id", owner,
		"type", a.Type)
	s.invalidate(owner)
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, owner, id string) (core.Account, error) {
	return s.store.FindOwnedAccount(ctx, id, owner)
}

func (s *AccountService) List(ctx context.Context, owner string) ([]core.Account, error) {
	return s.store.FindAccounts(ctx, owner)
}

func (s *AccountService) Update(ctx context.Context, owner, id string, patch core.AccountPatch) (core.Account, error) {
	var a core.Account
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.FindOwnedAccount(ctx, id, owner)
		if err != nil {
			return err
		}
		a = patch.Apply(current, s.now())
		if err := a.Validate(); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, &a)
	})
	if err != nil {
		return core.Account{}, err
	}
	s.invalidate(owner)
	return a, nil
}

// Delete removes the account only. Transactions keep their reference and
// display it as a deleted account.
func (s *AccountService) Delete(ctx context.Context, owner, id string) error {
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteAccount(ctx, id, owner)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted",
		log.FieldComponent, log.ComponentAccounts,
		log.FieldOperation, log.OpDelete,
		"account_id", id,
		"user_id", owner)
	s.invalidate(owner)
	return nil
}

func (s *AccountService) invalidate(owner string) {
	if s.cache != nil {
		s.cache.Invalidate(owner)
	}
}
