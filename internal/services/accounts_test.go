package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func newAccountService(t *testing.T) (*AccountService, *countingInvalidator) {
	t.Helper()
	inv := &countingInvalidator{}
	n := 0
	svc := NewAccountService(memory.NewStore(), inv).WithClock(
		func() time.Time { return clock },
		func() string { n++; return "acc-" + string(rune('0'+n)) },
	)
	return svc, inv
}

func TestAccountService_Create(t *testing.T) {
	ctx := context.Background()
	svc, inv := newAccountService(t)

	a, err := svc.Create(ctx, owner, core.AccountInput{Name: "  Checking ", Type: core.AccountBank, Balance: core.Cents(12050)})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", a.ID)
	assert.Equal(t, "Checking", a.Name)
	assert.Equal(t, int64(12050), a.Balance.Cents)
	assert.Equal(t, core.DefaultCurrency, a.Currency)
	assert.Equal(t, core.DefaultColor, a.Color)
	assert.True(t, a.Active)
	assert.Equal(t, []string{owner}, inv.owners)

	_, err = svc.Create(ctx, owner, core.AccountInput{Name: "X", Type: "piggy_bank"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.Create(ctx, owner, core.AccountInput{Type: core.AccountCash})
	assert.ErrorIs(t, err, core.ErrValidation)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAccountService_UpdateKeepsBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAccountService(t)

	a, err := svc.Create(ctx, owner, core.AccountInput{Name: "Wallet", Type: core.AccountWallet, Balance: core.Cents(500)})
	require.NoError(t, err)

	name, inactive := "Old wallet", false
	updated, err := svc.Update(ctx, owner, a.ID, core.AccountPatch{Name: &name, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Old wallet", updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(500), updated.Balance.Cents)

	empty := ""
	_, err = svc.Update(ctx, owner, a.ID, core.AccountPatch{Name: &empty})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Update(ctx, "someone-else", a.ID, core.AccountPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAccountService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAccountService(t)

	a, err := svc.Create(ctx, owner, core.AccountInput{Name: "Cash", Type: core.AccountCash})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "someone-else", a.ID), core.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, owner, a.ID))

	_, err = svc.Get(ctx, owner, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
