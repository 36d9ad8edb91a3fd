package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validTransfer() Transaction {
	return Transaction{
		ID:          "t1",
		Owner:       "u1",
		Type:        Transfer,
		Category:    "Savings",
		Amount:      Cents(4000),
		Date:        time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		AccountID:   "a",
		ToAccountID: "b",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransfer().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*Transaction)
		field string
		cause error
	}{
		{"bad type", func(tx *Transaction) { tx.Type = "gift" }, "type", ErrInvalidType},
		{"zero amount", func(tx *Transaction) { tx.Amount = Cents(0) }, "amount", ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Cents(-5) }, "amount", ErrInvalidAmount},
		{"empty category", func(tx *Transaction) { tx.Category = "  " }, "category", ErrEmptyCategory},
		{"missing account", func(tx *Transaction) { tx.AccountID = "" }, "account", ErrMissingAccount},
		{"missing destination", func(tx *Transaction) { tx.ToAccountID = "" }, "toAccount", ErrMissingDestination},
		{"same account", func(tx *Transaction) { tx.ToAccountID = "a" }, "toAccount", ErrSameAccount},
		{"destination on expense", func(tx *Transaction) { tx.Type = Expense }, "toAccount", ErrUnexpectedDestination},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, "date", ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransfer()
			tc.mut(&tx)
			err := tx.Validate()
			if !errors.Is(err, ErrValidation) || !errors.Is(err, tc.cause) {
				t.Fatalf("expected validation error wrapping %v, got %v", tc.cause, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %+v", tc.field, ve)
			}
		})
	}
}

func TestTransactionPatchApply(t *testing.T) {
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	expense := Expense
	amount := Cents(6000)

	got := TransactionPatch{Amount: &amount}.Apply(validTransfer(), now)
	if got.Amount.Cents != 6000 || got.ToAccountID != "b" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected patched transfer: %+v", got)
	}

	got = TransactionPatch{Type: &expense}.Apply(validTransfer(), now)
	if got.ToAccountID != "" {
		t.Fatalf("switching to expense should clear destination, got %q", got.ToAccountID)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("expected valid expense, got %v", err)
	}
}

func TestTransactionInputDefaults(t *testing.T) {
	now := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	var in TransactionInput
	body := `{"type":"expense","category":" Food ","amount":"12.50","account":"a","tags":["x"," ","x","y"]}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tx := in.Transaction("t1", "u1", now)
	if !tx.Date.Equal(now) {
		t.Fatalf("expected date to default to now, got %v", tx.Date)
	}
	if tx.Category != "Food" || tx.Amount.Cents != 1250 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if len(tx.Tags) != 2 || tx.Tags[0] != "x" || tx.Tags[1] != "y" {
		t.Fatalf("unexpected tags %v", tx.Tags)
	}
}

func TestDateUnmarshal(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-01-31"`), &d); err != nil {
		t.Fatalf("date only: %v", err)
	}
	if !d.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", d.Time)
	}
	if !d.IsCalendar() {
		t.Fatalf("date-only input should decode as a calendar date")
	}
	if err := json.Unmarshal([]byte(`"2025-01-31T10:00:00+02:00"`), &d); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if d.IsCalendar() {
		t.Fatalf("rfc3339 input is an instant")
	}
	if err := json.Unmarshal([]byte(`"31/01/2025"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateAnchor(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	got := NewDate(2025, 3, 1).Anchor(loc)
	if !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("calendar date anchored to %v", got.Time)
	}
	if got.Time.Day() != 1 || !got.IsCalendar() {
		t.Fatalf("anchoring must keep the calendar day, got %v", got.Time)
	}

	instant := Date{Time: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)}
	if got := instant.Anchor(loc); !got.Equal(instant.Time) {
		t.Fatalf("instant moved to %v", got.Time)
	}
	if got := (Date{}).Anchor(loc); !got.Time.IsZero() {
		t.Fatalf("zero date should stay zero, got %v", got.Time)
	}
}

func TestAccountInputDefaults(t *testing.T) {
	now := time.Now()
	a := AccountInput{Name: " Checking ", Type: AccountBank, Balance: Cents(-500)}.Account("a1", "u1", now)
	if a.Name != "Checking" || a.Currency != DefaultCurrency || a.Color != DefaultColor || a.Icon != DefaultIcon || !a.Active {
		t.Fatalf("unexpected defaults: %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	a.Type = "piggy"
	if err := a.Validate(); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
}

func TestTransactionViewForDanglingAccount(t *testing.T) {
	tx := validTransfer()
	v := tx.View(MissingRef("a"), &AccountRef{ID: "b", Name: "Savings"})
	if !v.Account.Deleted || v.Account.Name != DeletedAccountName {
		t.Fatalf("expected deleted source ref, got %+v", v.Account)
	}
	if v.ToAccount == nil || v.ToAccount.ID != "b" {
		t.Fatalf("expected destination ref, got %+v", v.ToAccount)
	}
	tx.Type, tx.ToAccountID = Income, ""
	if v := tx.View(MissingRef("a"), &AccountRef{ID: "b"}); v.ToAccount != nil {
		t.Fatalf("non-transfer must not carry a destination")
	}
}

func TestTransactionResolve(t *testing.T) {
	tx := validTransfer()
	refs := RefIndex([]Account{{ID: tx.AccountID, Name: "Checking", Type: AccountBank, Color: "#fff"}})

	v := tx.Resolve(refs)
	if v.Account.Name != "Checking" || v.Account.Deleted {
		t.Fatalf("expected resolved source, got %+v", v.Account)
	}
	if v.ToAccount == nil || !v.ToAccount.Deleted || v.ToAccount.ID != tx.ToAccountID {
		t.Fatalf("expected deleted destination ref, got %+v", v.ToAccount)
	}
}
