// Package storage persists the documents the dashboard owns: overrides,
// distribution rules, allocations and classified month snapshots.
//
// Every document is read and written whole. A missing document loads as
// the zero value of its type.
package storage

import (
	"context"
	"errors"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
)

// Document names shared by every backend.
const (
	DocOverrides     = "overrides"
	DocDistributions = "distributions"
	DocLabour        = "labour"
	DocFixedCosts    = "fixed_costs"
)

var ErrClosed = errors.New("storage closed")

// Store is a whole-document read-modify-write store.
type Store[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, value T) error
}

// SnapshotStore keeps the classified, undistributed groups of past months.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, month core.MonthKey) (core.Groups, bool, error)
	SaveSnapshot(ctx context.Context, month core.MonthKey, groups core.Groups) error
	ListSnapshots(ctx context.Context) ([]core.MonthKey, error)
}

// Documents bundles the stores of one backend.
type Documents struct {
	Overrides     Store[core.OverrideTable]
	Distributions Store[core.DistributionTable]
	Labour        Store[labour.Allocations]
	FixedCosts    Store[fixedcosts.Document]
	Snapshots     SnapshotStore
}
