package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountCreditCard AccountType = "credit_card"
	AccountWallet     AccountType = "wallet"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

// Account defaults applied when the caller leaves a field empty.
const (
	DefaultCurrency = "USD"
	DefaultColor    = "#3B82F6"
	DefaultIcon     = "wallet"
)

// DeletedAccountName is shown for references to accounts that no longer exist.
const DeletedAccountName = "Deleted account"

type (
	AccountType     string
	TransactionType string

	// Date is a calendar date or instant supplied by a client. It accepts
	// both "2006-01-02" and RFC 3339 encodings. Calendar dates decode at UTC
	// midnight until Anchor places them in the ledger's zone.
	Date struct {
		time.Time
		calendar bool
	}

	Account struct {
		ID        string      `json:"id"`
		Owner     string      `json:"owner"`
		Name      string      `json:"name"`
		Type      AccountType `json:"type"`
		Balance   Money       `json:"balance"`
		Currency  string      `json:"currency"`
		Color     string      `json:"color"`
		Icon      string      `json:"icon"`
		Active    bool        `json:"isActive"`
		Version   int64       `json:"-"`
		CreatedAt time.Time   `json:"createdAt"`
		UpdatedAt time.Time   `json:"updatedAt"`
	}

	// AccountRef is the display projection of an account referenced by a
	// transaction. Deleted is set when the reference no longer resolves.
	AccountRef struct {
		ID      string      `json:"id"`
		Name    string      `json:"name"`
		Type    AccountType `json:"type,omitempty"`
		Color   string      `json:"color,omitempty"`
		Deleted bool        `json:"deleted,omitempty"`
	}

	Transaction struct {
		ID          string
		Owner       string
		Type        TransactionType
		Category    string
		Amount      Money
		Description string
		Date        time.Time
		AccountID   string
		ToAccountID string // empty unless Type is Transfer
		Tags        []string
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// TransactionView is a transaction with its account references resolved
	// for display.
	TransactionView struct {
		ID          string          `json:"id"`
		Owner       string          `json:"owner"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description,omitempty"`
		Date        time.Time       `json:"date"`
		Account     AccountRef      `json:"account"`
		ToAccount   *AccountRef     `json:"toAccount,omitempty"`
		Tags        []string        `json:"tags"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountCreditCard, AccountWallet:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// Ref projects the account for display next to a transaction.
func (a Account) Ref() AccountRef {
	return AccountRef{ID: a.ID, Name: a.Name, Type: a.Type, Color: a.Color}
}

// MissingRef is the reference shown for an id that no longer resolves.
func MissingRef(id string) AccountRef {
	return AccountRef{ID: id, Name: DeletedAccountName, Deleted: true}
}

// View builds the display form of tx. dst is ignored for non-transfers.
func (tx Transaction) View(src AccountRef, dst *AccountRef) TransactionView {
	v := TransactionView{
		ID:          tx.ID,
		Owner:       tx.Owner,
		Type:        tx.Type,
		Category:    tx.Category,
		Amount:      tx.Amount,
		Description: tx.Description,
		Date:        tx.Date,
		Account:     src,
		Tags:        tx.Tags,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if tx.Type == Transfer {
		v.ToAccount = dst
	}
	return v
}

// RefIndex maps account ids to their display references.
func RefIndex(accounts []Account) map[string]AccountRef {
	refs := make(map[string]AccountRef, len(accounts))
	for _, a := range accounts {
		refs[a.ID] = a.Ref()
	}
	return refs
}

// Resolve builds the view of tx from refs. Ids missing from refs are shown
// as deleted accounts.
func (tx Transaction) Resolve(refs map[string]AccountRef) TransactionView {
	src, ok := refs[tx.AccountID]
	if !ok {
		src = MissingRef(tx.AccountID)
	}
	var dst *AccountRef
	if tx.ToAccountID != "" {
		ref, ok := refs[tx.ToAccountID]
		if !ok {
			ref = MissingRef(tx.ToAccountID)
		}
		dst = &ref
	}
	return tx.View(src, dst)
}

const dateLayout = "2006-01-02"

// NewDate creates a calendar Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), calendar: true}
}

// IsCalendar reports whether d was given as a bare "2006-01-02" date.
func (d Date) IsCalendar() bool { return d.calendar }

// Anchor moves a calendar date to midnight of the same day in loc. Instants
// and zero dates are returned unchanged.
func (d Date) Anchor(loc *time.Location) Date {
	if !d.calendar || loc == nil || d.Time.IsZero() {
		return d
	}
	y, m, day := d.Time.Date()
	return Date{Time: time.Date(y, m, day, 0, 0, 0, 0, loc), calendar: true}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s, time.UTC)
	if err != nil {
		return err
	}
	_, layoutErr := time.Parse(dateLayout, strings.TrimSpace(s))
	d.Time = parsed
	d.calendar = layoutErr == nil
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time)
}

// ParseDate accepts "2006-01-02" (interpreted in loc) or RFC 3339.
// An empty string yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// CleanTags trims, drops empties and dedupes while preserving order.
func CleanTags(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
