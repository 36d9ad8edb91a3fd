package core

// Side identifies which leg of a transaction a delta belongs to.
type Side int

const (
	Source Side = iota
	Destination
)

func (s Side) String() string {
	if s == Destination {
		return "destination"
	}
	return "source"
}

// BalanceDelta is the signed change a transaction implies for one account.
type BalanceDelta struct {
	AccountID string
	Side      Side
	Amount    Money
}

// Effects returns the deltas applying tx produces: income credits the
// source, expense debits it, and a transfer debits the source and credits
// the destination.
func Effects(tx Transaction) []BalanceDelta {
	switch tx.Type {
	case Income:
		return []BalanceDelta{{AccountID: tx.AccountID, Side: Source, Amount: tx.Amount}}
	case Expense:
		return []BalanceDelta{{AccountID: tx.AccountID, Side: Source, Amount: Money{Cents: -tx.Amount.Cents}}}
	case Transfer:
		return []BalanceDelta{
			{AccountID: tx.AccountID, Side: Source, Amount: Money{Cents: -tx.Amount.Cents}},
			{AccountID: tx.ToAccountID, Side: Destination, Amount: tx.Amount},
		}
	}
	return nil
}

// Reversal returns the exact inverse of Effects(tx).
func Reversal(tx Transaction) []BalanceDelta {
	deltas := Effects(tx)
	for i := range deltas {
		deltas[i].Amount.Cents = -deltas[i].Amount.Cents
	}
	return deltas
}

// NetEffects folds deltas into a per-account sum.
func NetEffects(deltas ...[]BalanceDelta) map[string]Money {
	out := map[string]Money{}
	for _, ds := range deltas {
		for _, d := range ds {
			out[d.AccountID] = out[d.AccountID].Add(d.Amount)
		}
	}
	return out
}
