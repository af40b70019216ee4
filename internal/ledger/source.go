// Package ledger is the boundary to the accounting system. The engine only
// sees already-fetched lines; this package supplies them.
package ledger

import (
	"context"
	"sync"

	"bizreview/internal/core"
)

// Source delivers ledger data for an inclusive date range.
type Source interface {
	Accounts(ctx context.Context) (core.AccountTable, error)
	BillLines(ctx context.Context, r core.DateRange) ([]core.LedgerLine, error)
	DaybookLines(ctx context.Context, r core.DateRange) ([]core.DaybookLine, error)
	Invoices(ctx context.Context, r core.DateRange) ([]core.Invoice, error)
}

// Data is the full content of a ledger export.
type Data struct {
	Accounts []core.Account     `json:"accounts"`
	Bills    []core.LedgerLine  `json:"billLines"`
	Daybook  []core.DaybookLine `json:"daybookLines"`
	Invoices []core.Invoice     `json:"invoices"`
}

// AccountTable indexes accounts by code. Entries without a code are dropped.
func (d Data) AccountTable() core.AccountTable {
	out := make(core.AccountTable, len(d.Accounts))
	for _, a := range d.Accounts {
		if a.Code == "" {
			continue
		}
		out[a.Code] = a
	}
	return out
}

// MemorySource serves a fixed Data set.
type MemorySource struct {
	mu   sync.RWMutex
	data Data
}

func NewMemorySource(d Data) *MemorySource {
	return &MemorySource{data: d}
}

// Replace swaps the served data.
func (m *MemorySource) Replace(d Data) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = d
}

func (m *MemorySource) Accounts(ctx context.Context) (core.AccountTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.AccountTable(), nil
}

func (m *MemorySource) BillLines(ctx context.Context, r core.DateRange) ([]core.LedgerLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inRange(m.data.Bills, r, func(l core.LedgerLine) string { return l.Date }), nil
}

func (m *MemorySource) DaybookLines(ctx context.Context, r core.DateRange) ([]core.DaybookLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inRange(m.data.Daybook, r, func(l core.DaybookLine) string { return l.Date }), nil
}

func (m *MemorySource) Invoices(ctx context.Context, r core.DateRange) ([]core.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inRange(m.data.Invoices, r, func(i core.Invoice) string { return i.Date }), nil
}

// inRange returns a fresh slice with the items dated inside r.
func inRange[T any](items []T, r core.DateRange, date func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if r.Contains(date(it)) {
			out = append(out, it)
		}
	}
	return out
}
