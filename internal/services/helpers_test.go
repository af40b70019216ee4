package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
	"bizreview/internal/ledger"
	"bizreview/internal/rules"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules(t *testing.T) *rules.RuleTable {
	t.Helper()
	cfg, err := rules.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	return rules.NewRuleTable(cfg)
}

// fixedNow is mid-March 2025; the previous month is February.
var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func testLedger() ledger.Data {
	return ledger.Data{
		Accounts: []core.Account{
			{Code: "1111", ID: "a-rev-cafe", Name: "Café sales"},
			{Code: "1211", ID: "a-cafe", Name: "Café purchases"},
			{Code: "1510", ID: "a-rent", Name: "Rent"},
			{Code: "1410", ID: "a-wages", Name: "Wages"},
			{Code: "1218", ID: "a-ignored", Name: "Stock adjustment"},
		},
		Bills: []core.LedgerLine{
			{ID: "b-rent-feb", AccountID: "a-rent", SupplierName: "Landlord", Amount: dec("900"), Date: "2025-02-01"},
			{ID: "b-bread-feb", AccountID: "a-cafe", SupplierName: "Copenhagen Bakery", Amount: dec("100"), Date: "2025-02-10"},
			{ID: "b-rent-mar", AccountID: "a-rent", SupplierName: "Landlord", Amount: dec("900"), Date: "2025-03-01"},
			{ID: "b-bread-mar", AccountID: "a-cafe", SupplierName: "Copenhagen Bakery", Amount: dec("200"), Date: "2025-03-03"},
			{ID: "b-wages-mar", AccountID: "a-wages", SupplierName: "Payroll", Amount: dec("1000"), Date: "2025-03-05"},
			{ID: "b-unknown-mar", AccountID: "a-cafe", SupplierName: "Zqxv Trading", Amount: dec("50"), Date: "2025-03-07"},
		},
		Daybook: []core.DaybookLine{
			{ID: "d-feb", AccountID: "a-rev-cafe", Side: core.SideCredit, Amount: dec("4000"), Date: "2025-02-20"},
			{ID: "d-mar", AccountID: "a-rev-cafe", Side: core.SideCredit, Amount: dec("5000"), Date: "2025-03-10"},
		},
	}
}

// countingSource records how often the ledger is asked for bill lines.
type countingSource struct {
	ledger.Source
	bills atomic.Int64
}

func (c *countingSource) BillLines(ctx context.Context, r core.DateRange) ([]core.LedgerLine, error) {
	c.bills.Add(1)
	return c.Source.BillLines(ctx, r)
}

type fakePublisher struct {
	mu     sync.Mutex
	kinds  []string
	keys   []string
	failOn error
}

func (f *fakePublisher) PublishRulesChanged(_ context.Context, kind, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.keys = append(f.keys, key)
	return f.failOn
}

type fakeInvalidator struct {
	calls atomic.Int64
}

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls.Add(1)
	return nil
}
