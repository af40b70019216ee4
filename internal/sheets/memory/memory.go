// Package memory is an in-process ReportExporter for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"bizreview/internal/core"
	"bizreview/internal/sheets"
)

var _ sheets.ReportExporter = (*Exporter)(nil)

type Exporter struct {
	mu    sync.Mutex
	rows  map[string][][]string
	calls int
	err   error
}

func New() *Exporter {
	return &Exporter{rows: make(map[string][][]string)}
}

// FailWith makes every following export return err. nil clears it.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *Exporter) ExportMonth(ctx context.Context, month core.MonthKey, groups core.Groups) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return e.err
	}
	e.rows[month.String()] = sheets.Rows(month, groups)
	return nil
}

// Rows returns the last rows exported for month.
func (e *Exporter) Rows(month string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.rows[month]...)
}

// Months lists exported months in ascending order.
func (e *Exporter) Months() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.rows))
	for m := range e.rows {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (e *Exporter) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
