package core

import "testing"

func TestEffects(t *testing.T) {
	base := Transaction{Amount: Cents(100), AccountID: "a", ToAccountID: "b"}

	cases := []struct {
		typ  TransactionType
		want map[string]int64
	}{
		{Income, map[string]int64{"a": 100}},
		{Expense, map[string]int64{"a": -100}},
		{Transfer, map[string]int64{"a": -100, "b": 100}},
	}
	for _, tc := range cases {
		tx := base
		tx.Type = tc.typ
		if tc.typ != Transfer {
			tx.ToAccountID = ""
		}
		got := NetEffects(Effects(tx))
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %d accounts, got %v", tc.typ, len(tc.want), got)
		}
		for id, cents := range tc.want {
			if got[id].Cents != cents {
				t.Fatalf("%s: account %s expected %d, got %d", tc.typ, id, cents, got[id].Cents)
			}
		}
	}
}

func TestReversalCancelsEffects(t *testing.T) {
	for _, typ := range []TransactionType{Income, Expense, Transfer} {
		tx := Transaction{Type: typ, Amount: Cents(4321), AccountID: "a"}
		if typ == Transfer {
			tx.ToAccountID = "b"
		}
		for id, m := range NetEffects(Effects(tx), Reversal(tx)) {
			if m.Cents != 0 {
				t.Fatalf("%s: account %s not restored, net %d", typ, id, m.Cents)
			}
		}
	}
}

func TestEffectsSides(t *testing.T) {
	deltas := Effects(Transaction{Type: Transfer, Amount: Cents(1), AccountID: "a", ToAccountID: "b"})
	if deltas[0].Side != Source || deltas[1].Side != Destination {
		t.Fatalf("unexpected sides %+v", deltas)
	}
	if Destination.String() != "destination" || Source.String() != "source" {
		t.Fatalf("unexpected side names")
	}
}
