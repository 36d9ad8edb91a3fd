package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{".5", 50, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1e3", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoneySigned(t *testing.T) {
	m, err := ParseMoney("-12.5")
	if err != nil || m.Cents != -1250 {
		t.Fatalf("expected -1250, got %d (err=%v)", m.Cents, err)
	}
	if m.String() != "-12.50" {
		t.Fatalf("unexpected string %q", m.String())
	}
}

func TestMoneyJSON(t *testing.T) {
	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.345, "b": "7"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.Cents != 1235 || in.B.Cents != 700 {
		t.Fatalf("unexpected cents a=%d b=%d", in.A.Cents, in.B.Cents)
	}
	out, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.35,"b":7.00}` {
		t.Fatalf("unexpected json %s", out)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"abc"`), &bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMoneyDivRound(t *testing.T) {
	cases := []struct {
		total int64
		n     int64
		want  int64
	}{
		{1000, 3, 333},
		{1001, 2, 501}, // 500.5 rounds away from zero
		{0, 5, 0},
		{500, 0, 0},
	}
	for _, tc := range cases {
		if got := Cents(tc.total).DivRound(tc.n); got.Cents != tc.want {
			t.Fatalf("%d/%d expected %d, got %d", tc.total, tc.n, tc.want, got.Cents)
		}
	}
}

func TestMoneyAddChecked(t *testing.T) {
	cases := []struct {
		a, b     int64
		want     int64
		overflow bool
	}{
		{100, 250, 350, false},
		{-100, 40, -60, false},
		{maxCents, 0, maxCents, false},
		{maxCents, 1, 0, true},
		{-maxCents, -1, 0, true},
		{maxCents, maxCents, 0, true},
	}
	for _, c := range cases {
		got, err := Cents(c.a).AddChecked(Cents(c.b))
		if c.overflow {
			if !errors.Is(err, ErrBalanceOverflow) {
				t.Errorf("%d + %d: expected ErrBalanceOverflow, got %v", c.a, c.b, err)
			}
			continue
		}
		if err != nil || got.Cents != c.want {
			t.Errorf("%d + %d = %d, %v; want %d", c.a, c.b, got.Cents, err, c.want)
		}
	}
}

func TestMoneyAddSaturates(t *testing.T) {
	sum := Cents(maxCents)
	for i := 0; i < 3; i++ {
		sum = sum.Add(Cents(maxCents))
	}
	if sum.Cents != math.MaxInt64 {
		t.Fatalf("sum wrapped to %d", sum.Cents)
	}
	if back := sum.Add(Cents(-1)); back.Cents != math.MaxInt64-1 {
		t.Fatalf("adding a negative to a saturated sum gave %d", back.Cents)
	}
	diff := Cents(-maxCents)
	for i := 0; i < 3; i++ {
		diff = diff.Sub(Cents(maxCents))
	}
	if diff.Cents != math.MinInt64 {
		t.Fatalf("difference wrapped to %d", diff.Cents)
	}
}
