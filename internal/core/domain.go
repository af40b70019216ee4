package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// LabourGroupKey is the group computed by the labour allocation, never by the classifier.
	LabourGroupKey = "labour"
	// DefaultGroupKey receives override categories that belong to no configured group.
	DefaultGroupKey = "other"
	// UnknownSupplier is used when a line carries neither supplier nor description.
	UnknownSupplier = "Unknown"
)

const (
	SideDebit  = "debit"
	SideCredit = "credit"
)

type (
	// LedgerLine is one bill line as delivered by the fetch layer. Read-only to the engine.
	LedgerLine struct {
		ID           string          `json:"id"`
		BillID       string          `json:"billId,omitempty"`
		AccountID    string          `json:"accountId"`
		SupplierName string          `json:"supplierName"`
		Description  string          `json:"description"`
		Amount       decimal.Decimal `json:"amount"`
		Date         string          `json:"date"`
	}

	// DaybookLine is one journal line; only its side, account and amount matter here.
	DaybookLine struct {
		ID            string          `json:"id"`
		TransactionID string          `json:"transactionId,omitempty"`
		AccountID     string          `json:"accountId"`
		Side          string          `json:"side"`
		Amount        decimal.Decimal `json:"amount"`
		Date          string          `json:"date"`
	}

	Invoice struct {
		ID        string          `json:"id"`
		AccountNo string          `json:"accountNo"`
		Amount    decimal.Decimal `json:"amount"`
		Date      string          `json:"date"`
	}

	Account struct {
		Code string `json:"code,omitempty"`
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// AccountTable maps an account code to its chart-of-accounts entry.
	AccountTable map[string]Account

	// OverrideTable maps a line id to a manually chosen category.
	OverrideTable map[string]string

	DistributionRule struct {
		Months int `json:"months"`
	}

	// DistributionTable is keyed by DistributionKey(group, category).
	DistributionTable map[string]DistributionRule
)

var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidMonths     = errors.New("months must be between 1 and 24")
	ErrInvalidMonthKey   = errors.New("invalid month key")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrMissingField      = errors.New("missing required field")
	ErrUnknownGroup      = errors.New("unknown cost group")
	ErrUnknownTab        = errors.New("unknown tab")
	ErrInvalidPeriod     = errors.New("invalid period")
)

// ValidationError reports a rejected input together with the offending field.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func NewValidationError(field string, value any, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Value == nil || e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, fmt.Sprint(e.Value), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Supplier resolves the name used for supplier matching: the supplier,
// then the description, then UnknownSupplier.
func (l LedgerLine) Supplier() string {
	if s := strings.TrimSpace(l.SupplierName); s != "" {
		return l.SupplierName
	}
	if s := strings.TrimSpace(l.Description); s != "" {
		return l.Description
	}
	return UnknownSupplier
}

// CodeByID returns the inverse index account id -> code.
func (t AccountTable) CodeByID() map[string]string {
	out := make(map[string]string, len(t))
	for code, acc := range t {
		if acc.ID != "" {
			out[acc.ID] = code
		}
	}
	return out
}

// IDsWithPrefix returns the ids of every account whose code starts with prefix.
func (t AccountTable) IDsWithPrefix(prefix string) map[string]struct{} {
	out := make(map[string]struct{})
	if prefix == "" {
		return out
	}
	for code, acc := range t {
		if strings.HasPrefix(code, prefix) && acc.ID != "" {
			out[acc.ID] = struct{}{}
		}
	}
	return out
}

// DistributionKey builds the composite "group:category" rule key.
func DistributionKey(groupKey, category string) string {
	return groupKey + ":" + category
}

// SplitDistributionKey splits a rule key at the first colon. Group keys never contain one.
func SplitDistributionKey(key string) (groupKey, category string, ok bool) {
	groupKey, category, ok = strings.Cut(key, ":")
	if !ok || groupKey == "" || category == "" {
		return "", "", false
	}
	return groupKey, category, true
}

// ValidateMonths accepts a requested spread of 1..24 months.
func ValidateMonths(months int) error {
	if months < 1 || months > 24 {
		return NewValidationError("months", months, ErrInvalidMonths)
	}
	return nil
}

// MaxMonths returns the longest active spread in the table, at least 1.
func (t DistributionTable) MaxMonths() int {
	max := 1
	for _, rule := range t {
		if rule.Months > max {
			max = rule.Months
		}
	}
	return max
}

// Clone returns an independent copy of the table.
func (t DistributionTable) Clone() DistributionTable {
	out := make(DistributionTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t OverrideTable) Clone() OverrideTable {
	out := make(OverrideTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
