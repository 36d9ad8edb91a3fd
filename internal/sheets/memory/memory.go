package memory

import (
	"context"
	"sort"
	"sync"

	ports "fintrack/internal/sheets"
)

// Mirror is an in-process LedgerMirror.
type Mirror struct {
	mu       sync.Mutex
	rows     map[string]ports.LedgerRow
	failNext error
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[string]ports.LedgerRow{}}
}

// FailNext makes the next Upsert or Delete return err.
func (m *Mirror) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Mirror) Upsert(_ context.Context, row ports.LedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	row.Tags = append([]string(nil), row.Tags...)
	m.rows[row.ID] = row
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(id string) (ports.LedgerRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return row, ok
}

// Rows returns every mirrored row ordered by id.
func (m *Mirror) Rows() []ports.LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.LedgerRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mirror) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}
