package core

import (
	"strings"
	"time"
)

const maxDescriptionLen = 500

type (
	// TransactionInput is the client-supplied shape for a new transaction.
	TransactionInput struct {
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		AccountID   string          `json:"account"`
		ToAccountID string          `json:"toAccount"`
		Date        Date            `json:"date"`
		Tags        []string        `json:"tags"`
	}

	// TransactionPatch carries the fields of an update; nil means unchanged.
	TransactionPatch struct {
		Type        *TransactionType `json:"type"`
		Category    *string          `json:"category"`
		Amount      *Money           `json:"amount"`
		Description *string          `json:"description"`
		AccountID   *string          `json:"account"`
		ToAccountID *string          `json:"toAccount"`
		Date        *Date            `json:"date"`
		Tags        *[]string        `json:"tags"`
	}

	AccountInput struct {
		Name     string      `json:"name"`
		Type     AccountType `json:"type"`
		Balance  Money       `json:"balance"`
		Currency string      `json:"currency"`
		Color    string      `json:"color"`
		Icon     string      `json:"icon"`
	}

	// AccountPatch updates descriptive fields. Balance is not patchable.
	AccountPatch struct {
		Name     *string      `json:"name"`
		Type     *AccountType `json:"type"`
		Currency *string      `json:"currency"`
		Color    *string      `json:"color"`
		Icon     *string      `json:"icon"`
		Active   *bool        `json:"isActive"`
	}
)

// Normalize trims free-text fields and drops a destination on non-transfers
// that was sent empty.
func (in TransactionInput) Normalize() TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.ToAccountID = strings.TrimSpace(in.ToAccountID)
	in.Tags = CleanTags(in.Tags)
	return in
}

// Transaction builds the record for in. A zero date defaults to now.
func (in TransactionInput) Transaction(id, owner string, now time.Time) Transaction {
	in = in.Normalize()
	date := in.Date.Time
	if date.IsZero() {
		date = now
	}
	return Transaction{
		ID:          id,
		Owner:       owner,
		Type:        in.Type,
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        date,
		AccountID:   in.AccountID,
		ToAccountID: in.ToAccountID,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the record-level invariants of a transaction.
func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	if err := tx.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if strings.TrimSpace(tx.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	if len(tx.Description) > maxDescriptionLen {
		return Invalid("description", ErrDescriptionTooLong)
	}
	if strings.TrimSpace(tx.AccountID) == "" {
		return Invalid("account", ErrMissingAccount)
	}
	if tx.Date.IsZero() {
		return Invalid("date", ErrInvalidDate)
	}
	switch {
	case tx.Type == Transfer && tx.ToAccountID == "":
		return Invalid("toAccount", ErrMissingDestination)
	case tx.Type == Transfer && tx.ToAccountID == tx.AccountID:
		return Invalid("toAccount", ErrSameAccount)
	case tx.Type != Transfer && tx.ToAccountID != "":
		return Invalid("toAccount", ErrUnexpectedDestination)
	}
	return nil
}

// Apply merges the patch onto tx. Switching away from a transfer clears the
// destination.
func (p TransactionPatch) Apply(tx Transaction, now time.Time) Transaction {
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Category != nil {
		tx.Category = strings.TrimSpace(*p.Category)
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Description != nil {
		tx.Description = strings.TrimSpace(*p.Description)
	}
	if p.AccountID != nil {
		tx.AccountID = strings.TrimSpace(*p.AccountID)
	}
	if p.ToAccountID != nil {
		tx.ToAccountID = strings.TrimSpace(*p.ToAccountID)
	}
	if p.Date != nil && !p.Date.IsZero() {
		tx.Date = p.Date.Time
	}
	if p.Tags != nil {
		tx.Tags = CleanTags(*p.Tags)
	}
	if tx.Type != Transfer && (p.ToAccountID == nil || *p.ToAccountID == "") {
		tx.ToAccountID = ""
	}
	tx.UpdatedAt = now
	return tx
}

func (in AccountInput) Account(id, owner string, now time.Time) Account {
	a := Account{
		ID:        id,
		Owner:     owner,
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Balance:   in.Balance,
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
		Color:     strings.TrimSpace(in.Color),
		Icon:      strings.TrimSpace(in.Icon),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if a.Color == "" {
		a.Color = DefaultColor
	}
	if a.Icon == "" {
		a.Icon = DefaultIcon
	}
	return a
}

func (a Account) Validate() error {
	if a.Name == "" {
		return Invalid("name", ErrEmptyName)
	}
	if !a.Type.Valid() {
		return Invalid("type", ErrInvalidAccountType)
	}
	return nil
}

func (p AccountPatch) Apply(a Account, now time.Time) Account {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Currency != nil && strings.TrimSpace(*p.Currency) != "" {
		a.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Color != nil && strings.TrimSpace(*p.Color) != "" {
		a.Color = strings.TrimSpace(*p.Color)
	}
	if p.Icon != nil && strings.TrimSpace(*p.Icon) != "" {
		a.Icon = strings.TrimSpace(*p.Icon)
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	a.UpdatedAt = now
	return a
}
