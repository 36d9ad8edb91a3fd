package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// TransferMode decides what happens when a transfer's destination cannot be
// resolved while its effects are applied.
type TransferMode string

const (
	// TransferStrict rejects the write with a validation error on toAccount.
	TransferStrict TransferMode = "strict"
	// TransferLenient debits the source only and reports the degradation.
	TransferLenient TransferMode = "lenient"
)

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Invalidator drops cached derived data for an owner.
type Invalidator interface {
	Invalidate(owner string)
}

type LedgerConfig struct {
	TransferMode TransferMode
	// WriteTimeout bounds a mutation once started. Mutations are detached
	// from the caller's cancellation so a disconnect cannot split them.
	WriteTimeout time.Duration
	// Location is the zone calendar dates in request bodies belong to. It
	// must match the zone analytics periods are resolved in.
	Location     *time.Location
	Now          func() time.Time
	NewID        func() string
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		TransferMode: TransferStrict,
		WriteTimeout: 10 * time.Second,
		Location:     time.UTC,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

// MutationResult is a committed transaction plus whether a transfer's
// destination was credited.
type MutationResult struct {
	Transaction        core.TransactionView
	DestinationApplied bool
}

// ListFilter narrows List. Zero values mean no constraint.
type ListFilter struct {
	From      time.Time
	To        time.Time
	Type      core.TransactionType
	Category  string
	AccountID string
}

// LedgerService keeps account balances consistent with the transactions that
// reference them. Every mutation reverts and applies balance effects in the
// same unit of work as the record write.
type LedgerService struct {
	store     storage.Store
	publisher EventPublisher
	cache     Invalidator
	logger    *log.StructuredLogger
	config    LedgerConfig
}

func NewLedgerService(store storage.Store, publisher EventPublisher, cache Invalidator, logger *log.StructuredLogger, config LedgerConfig) *LedgerService {
	def := DefaultLedgerConfig()
	if config.TransferMode == "" {
		config.TransferMode = def.TransferMode
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.Location == nil {
		config.Location = def.Location
	}
	if config.Now == nil {
		config.Now = def.Now
	}
	if config.NewID == nil {
		config.NewID = def.NewID
	}
	if logger == nil {
		logger = log.NewStructuredLogger(log.New(log.DefaultConfig()))
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
		config:    config,
	}
}

func (s *LedgerService) TransferMode() TransferMode { return s.config.TransferMode }

// Create validates, stores and applies a new transaction.
func (s *LedgerService) Create(ctx context.Context, owner string, in core.TransactionInput) (MutationResult, error) {
	now := s.config.Now()
	in.Date = in.Date.Anchor(s.config.Location)
	tx := in.Transaction(s.config.NewID(), owner, now)
	if err := tx.Validate(); err != nil {
		return MutationResult{}, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	var applied bool
	err := s.store.Atomic(ctx, func(ctx context.Context, st storage.Tx) error {
		var err error
		if applied, err = s.apply(ctx, st, tx, s.destinationRequired(nil, tx)); err != nil {
			return err
		}
		return st.SaveTransaction(ctx, &tx)
	})
	if err != nil {
		return MutationResult{}, err
	}

	s.committed(ctx, log.OpCreate, tx, applied)
	view, err := s.view(ctx, tx)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Transaction: view, DestinationApplied: applied}, nil
}

// Update reverts the stored transaction against its original accounts, then
// applies the patched one against its new accounts.
func (s *LedgerService) Update(ctx context.Context, owner, id string, patch core.TransactionPatch) (MutationResult, error) {
	if patch.Date != nil {
		anchored := patch.Date.Anchor(s.config.Location)
		patch.Date = &anchored
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	var (
		updated core.Transaction
		applied bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, st storage.Tx) error {
		old, err := st.FindOwnedTransaction(ctx, id, owner)
		if err != nil {
			return err
		}
		updated = patch.Apply(old, s.config.Now())
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := s.revert(ctx, st, old); err != nil {
			return err
		}
		if applied, err = s.apply(ctx, st, updated, s.destinationRequired(&old, updated)); err != nil {
			return err
		}
		return st.SaveTransaction(ctx, &updated)
	})
	if err != nil {
		return MutationResult{}, err
	}

	s.committed(ctx, log.OpUpdate, updated, applied)
	view, err := s.view(ctx, updated)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Transaction: view, DestinationApplied: applied}, nil
}

// Delete reverts and removes a transaction.
func (s *LedgerService) Delete(ctx context.Context, owner, id string) error {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	var old core.Transaction
	err := s.store.Atomic(ctx, func(ctx context.Context, st storage.Tx) error {
		var err error
		if old, err = st.FindOwnedTransaction(ctx, id, owner); err != nil {
			return err
		}
		if err := s.revert(ctx, st, old); err != nil {
			return err
		}
		return st.DeleteTransaction(ctx, id, owner)
	})
	if err != nil {
		return err
	}

	s.committed(ctx, log.OpDelete, old, true)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, owner, id string) (core.TransactionView, error) {
	tx, err := s.store.FindOwnedTransaction(ctx, id, owner)
	if err != nil {
		return core.TransactionView{}, err
	}
	return s.view(ctx, tx)
}

// List returns the owner's transactions newest first.
func (s *LedgerService) List(ctx context.Context, owner string, f ListFilter) ([]core.TransactionView, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.Invalid("type", core.ErrInvalidType)
	}
	txs, err := s.store.FindTransactions(ctx, storage.TransactionFilter{
		Owner:     owner,
		Type:      f.Type,
		Category:  f.Category,
		AccountID: f.AccountID,
		From:      f.From,
		To:        f.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	refs, err := s.refs(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]core.TransactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Resolve(refs))
	}
	return out, nil
}

// destinationRequired reports whether an unresolved transfer destination must
// reject the write. Strict mode only checks destinations the write introduces,
// so an edit that keeps a dangling destination still goes through.
func (s *LedgerService) destinationRequired(old *core.Transaction, tx core.Transaction) bool {
	if s.config.TransferMode != TransferStrict || tx.Type != core.Transfer {
		return false
	}
	return old == nil || old.Type != core.Transfer || old.ToAccountID != tx.ToAccountID
}

// apply adds tx's effects to the referenced balances and reports whether a
// transfer destination was credited.
func (s *LedgerService) apply(ctx context.Context, st storage.Tx, tx core.Transaction, requireDestination bool) (bool, error) {
	destinationApplied := true
	for _, d := range core.Effects(tx) {
		acc, err := st.FindOwnedAccount(ctx, d.AccountID, tx.Owner)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrNotFound) && d.Side == core.Destination:
			if requireDestination {
				return false, core.Invalid("toAccount", core.ErrDestinationUnavailable)
			}
			destinationApplied = false
			slog.DebugContext(ctx, "Transfer destination unavailable, debiting source only",
				"transaction_id", tx.ID,
				"to_account_id", d.AccountID)
			continue
		case errors.Is(err, core.ErrNotFound):
			return false, core.NotFound("account", d.AccountID)
		default:
			return false, err
		}

		if acc.Balance, err = acc.Balance.AddChecked(d.Amount); err != nil {
			return false, core.Invalid("amount", err)
		}
		acc.UpdatedAt = s.config.Now()
		if err := st.SaveAccount(ctx, &acc); err != nil {
			return false, err
		}
	}
	return destinationApplied, nil
}

// revert removes tx's effects. Accounts deleted since the effect was applied
// are skipped.
func (s *LedgerService) revert(ctx context.Context, st storage.Tx, tx core.Transaction) error {
	for _, d := range core.Reversal(tx) {
		acc, err := st.FindOwnedAccount(ctx, d.AccountID, tx.Owner)
		if errors.Is(err, core.ErrNotFound) {
			slog.DebugContext(ctx, "Skipping revert on missing account",
				"transaction_id", tx.ID,
				"account_id", d.AccountID,
				"side", d.Side.String())
			continue
		}
		if err != nil {
			return err
		}

		if acc.Balance, err = acc.Balance.AddChecked(d.Amount); err != nil {
			return core.Invalid("amount", err)
		}
		acc.UpdatedAt = s.config.Now()
		if err := st.SaveAccount(ctx, &acc); err != nil {
			return err
		}
	}
	return nil
}

// writeContext detaches ctx from the caller's cancellation and bounds it.
func (s *LedgerService) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.WriteTimeout)
}

// committed runs the post-commit side effects. None of them can fail the
// mutation.
func (s *LedgerService) committed(ctx context.Context, op string, tx core.Transaction, destinationApplied bool) {
	s.logger.LogTransactionMutation(ctx, op, tx.Owner, tx.ID, string(tx.Type), tx.AccountID, tx.ToAccountID, tx.Amount.Cents, destinationApplied)

	if s.cache != nil {
		s.cache.Invalidate(tx.Owner)
	}

	if s.publisher == nil {
		return
	}
	ev := amqp.NewUpsertEvent(tx.ID, tx.Owner, tx.Version)
	if op == log.OpDelete {
		ev = amqp.NewDeleteEvent(tx.ID, tx.Owner, tx.Version)
	}
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		// the mirror worker's backfill picks the change up later
		slog.WarnContext(ctx, "Failed to publish transaction event",
			"transaction_id", tx.ID,
			"op", ev.Op,
			"error", err)
	}
}

func (s *LedgerService) refs(ctx context.Context, owner string) (map[string]core.AccountRef, error) {
	accounts, err := s.store.FindAccounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return core.RefIndex(accounts), nil
}

func (s *LedgerService) view(ctx context.Context, tx core.Transaction) (core.TransactionView, error) {
	refs, err := s.refs(ctx, tx.Owner)
	if err != nil {
		return core.TransactionView{}, err
	}
	return tx.Resolve(refs), nil
}
