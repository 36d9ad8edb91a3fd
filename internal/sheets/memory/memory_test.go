package memory

import (
	"context"
	"errors"
	"testing"

	ports "fintrack/internal/sheets"
)

func TestMirrorUpsertDelete(t *testing.T) {
	ctx := context.Background()
	m := New()

	if err := m.Upsert(ctx, ports.LedgerRow{ID: "b", Version: 1}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := m.Upsert(ctx, ports.LedgerRow{ID: "a", Version: 1}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := m.Upsert(ctx, ports.LedgerRow{ID: "b", Version: 2}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rows := m.Rows()
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].Version != 2 {
		t.Fatalf("Rows() = %+v", rows)
	}

	if err := m.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() of a missing row should succeed, got %v", err)
	}
	if _, ok := m.Row("b"); ok {
		t.Error("row b should be gone")
	}
}

func TestMirrorFailNext(t *testing.T) {
	ctx := context.Background()
	m := New()
	boom := errors.New("quota exceeded")
	m.FailNext(boom)

	if err := m.Upsert(ctx, ports.LedgerRow{ID: "a"}); !errors.Is(err, boom) {
		t.Fatalf("Upsert() error = %v, want %v", err, boom)
	}
	if err := m.Upsert(ctx, ports.LedgerRow{ID: "a"}); err != nil {
		t.Fatalf("failure should be one-shot, got %v", err)
	}
}
