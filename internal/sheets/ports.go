package sheets

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Header is the first row of the mirror sheet. Column A holds the
// transaction id and is the lookup key.
var Header = []any{"ID", "Owner", "Date", "Type", "Category", "Description", "Amount", "Account", "To account", "Tags", "Version"}

// LedgerRow is the mirrored form of one transaction.
type LedgerRow struct {
	ID          string
	Owner       string
	Date        time.Time
	Type        core.TransactionType
	Category    string
	Description string
	Amount      core.Money
	Account     string
	ToAccount   string
	Tags        []string
	Version     int64
}

// NewLedgerRow projects a resolved transaction. Account columns carry
// display names.
func NewLedgerRow(v core.TransactionView, version int64) LedgerRow {
	row := LedgerRow{
		ID:          v.ID,
		Owner:       v.Owner,
		Date:        v.Date,
		Type:        v.Type,
		Category:    v.Category,
		Description: v.Description,
		Amount:      v.Amount,
		Account:     v.Account.Name,
		Tags:        v.Tags,
		Version:     version,
	}
	if v.ToAccount != nil {
		row.ToAccount = v.ToAccount.Name
	}
	return row
}

// Values renders the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{
		r.ID,
		r.Owner,
		r.Date.UTC().Format("2006-01-02"),
		string(r.Type),
		r.Category,
		r.Description,
		r.Amount.String(),
		r.Account,
		r.ToAccount,
		strings.Join(r.Tags, ", "),
		r.Version,
	}
}

// LedgerMirror is an external copy of the ledger keyed by transaction id.
// Both operations are idempotent.
type LedgerMirror interface {
	Upsert(ctx context.Context, row LedgerRow) error
	Delete(ctx context.Context, id string) error
}
