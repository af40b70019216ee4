package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"bizreview/internal/core"
)

// Export file names inside an ExportSource directory.
const (
	AccountsFile = "accounts.json"
	BillsFile    = "bill_lines.json"
	DaybookFile  = "daybook_lines.json"
	InvoicesFile = "invoices.json"
)

// ExportSource reads JSON arrays exported from the accounting system.
// Files are re-read on every call so a fresh export is picked up without a
// restart. A missing file reads as empty.
type ExportSource struct {
	dir    string
	logger *slog.Logger
}

func NewExportSource(dir string, logger *slog.Logger) *ExportSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportSource{dir: dir, logger: logger}
}

func (s *ExportSource) Dir() string { return s.dir }

func (s *ExportSource) Accounts(ctx context.Context) (core.AccountTable, error) {
	var accounts []core.Account
	if err := s.read(ctx, AccountsFile, &accounts); err != nil {
		return nil, err
	}
	return Data{Accounts: accounts}.AccountTable(), nil
}

func (s *ExportSource) BillLines(ctx context.Context, r core.DateRange) ([]core.LedgerLine, error) {
	var lines []core.LedgerLine
	if err := s.read(ctx, BillsFile, &lines); err != nil {
		return nil, err
	}
	return inRange(lines, r, func(l core.LedgerLine) string { return l.Date }), nil
}

func (s *ExportSource) DaybookLines(ctx context.Context, r core.DateRange) ([]core.DaybookLine, error) {
	var lines []core.DaybookLine
	if err := s.read(ctx, DaybookFile, &lines); err != nil {
		return nil, err
	}
	return inRange(lines, r, func(l core.DaybookLine) string { return l.Date }), nil
}

func (s *ExportSource) Invoices(ctx context.Context, r core.DateRange) ([]core.Invoice, error) {
	var invoices []core.Invoice
	if err := s.read(ctx, InvoicesFile, &invoices); err != nil {
		return nil, err
	}
	return inRange(invoices, r, func(i core.Invoice) string { return i.Date }), nil
}

func (s *ExportSource) read(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("Ledger export file missing, treating as empty", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger export %s: %w", name, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode ledger export %s: %w", name, err)
	}
	return nil
}

// ReadData decodes a single Data document, as produced by WriteData.
func ReadData(r io.Reader) (Data, error) {
	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Data{}, fmt.Errorf("decode ledger data: %w", err)
	}
	return d, nil
}

// WriteExport writes d into dir as the four export files.
func WriteExport(dir string, d Data) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	files := map[string]any{
		AccountsFile: nonNil(d.Accounts),
		BillsFile:    nonNil(d.Bills),
		DaybookFile:  nonNil(d.Daybook),
		InvoicesFile: nonNil(d.Invoices),
	}
	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
