// Package google writes monthly cost totals to a Google spreadsheet, one
// sheet per year ("2025 Report").
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bizreview/internal/core"
	ports "bizreview/internal/sheets"
)

var _ ports.ReportExporter = (*Exporter)(nil)

// Options configures an Exporter. Credentials are a service-account key,
// inline or from a file; with neither, Application Default Credentials apply.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *slog.Logger
}

func New(ctx context.Context, opts Options, logger *slog.Logger, extra ...goption.ClientOption) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = slog.Default()
	}
	svcOpts, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, append(svcOpts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Report"
	}
	logger.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", opts.SpreadsheetID, "sheet", base)
	return &Exporter{svc: svc, spreadsheetID: opts.SpreadsheetID, sheetBase: base, logger: logger}, nil
}

func clientOptions(opts Options) ([]goption.ClientOption, error) {
	out := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		out = append(out, goption.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		out = append(out, goption.WithCredentialsJSON(data))
	}
	return out, nil
}

// ExportMonth rewrites the year sheet with the month's rows in place of any
// earlier rows for that month. Other months are kept in order.
func (e *Exporter) ExportMonth(ctx context.Context, month core.MonthKey, groups core.Groups) error {
	sheet := yearPrefixedName(e.sheetBase, month.Year)
	if err := e.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, sheet+"!A2:D").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}

	rows := mergeRows(resp.Values, month.String(), ports.Rows(month, groups))
	values := make([][]any, 0, len(rows)+1)
	values = append(values, toAny(ports.Header))
	for _, r := range rows {
		values = append(values, toAny(r))
	}

	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, sheet+"!A:D", &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, sheet+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}

	e.logger.InfoContext(ctx, "Exported month to Google Sheets", "month", month.String(), "sheet", sheet, "rows", len(rows))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	e.logger.InfoContext(ctx, "Created sheet", "sheet", title)
	return nil
}

// mergeRows drops existing rows of month, keeps the rest and appends fresh.
func mergeRows(existing [][]any, month string, fresh [][]string) [][]string {
	out := make([][]string, 0, len(existing)+len(fresh))
	for _, row := range existing {
		r := toStrings(row)
		if len(r) == 0 || r[0] == "" || r[0] == month {
			continue
		}
		out = append(out, r)
	}
	return append(out, fresh...)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
