package services

import (
	"context"
	"errors"
	"testing"

	"bizreview/internal/amqp"
	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/storage"
)

func newActionService(t *testing.T) (*ActionService, storage.Documents, *fakePublisher, *fakeInvalidator) {
	t.Helper()
	docs := storage.NewMemoryDocuments()
	pub := &fakePublisher{}
	inv := &fakeInvalidator{}
	return NewActionService(testRules(t), docs, pub, inv, discardLogger()), docs, pub, inv
}

func TestSetOverride(t *testing.T) {
	ctx := context.Background()
	svc, docs, pub, inv := newActionService(t)

	if err := svc.SetOverride(ctx, "line-1", "Rent"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	stored, err := docs.Overrides.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored["line-1"] != "Rent" {
		t.Fatalf("stored = %v", stored)
	}
	if len(pub.kinds) != 1 || pub.kinds[0] != amqp.KindOverride || pub.keys[0] != "line-1" {
		t.Fatalf("published = %v %v", pub.kinds, pub.keys)
	}
	if inv.calls.Load() != 1 {
		t.Fatalf("invalidations = %d", inv.calls.Load())
	}
}

func TestSetOverrideRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name     string
		lineID   string
		category string
		field    string
		want     error
	}{
		{"blank line", "  ", "Rent", "billLineId", core.ErrMissingField},
		{"empty category", "line-1", "", "category", core.ErrMissingField},
		{"unknown category", "line-1", "Yachts", "category", core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, docs, pub, _ := newActionService(t)

			err := svc.SetOverride(ctx, tt.lineID, tt.category)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ve *core.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("field = %+v, want %s", ve, tt.field)
			}
			stored, _ := docs.Overrides.Load(ctx)
			if len(stored) != 0 {
				t.Fatalf("rejected override was stored: %v", stored)
			}
			if len(pub.kinds) != 0 {
				t.Fatal("rejected override was published")
			}
		})
	}
}

func TestClearOverride(t *testing.T) {
	ctx := context.Background()
	svc, docs, pub, _ := newActionService(t)

	if err := svc.SetOverride(ctx, "line-1", "Rent"); err != nil {
		t.Fatal(err)
	}
	if err := svc.ClearOverride(ctx, "line-1"); err != nil {
		t.Fatalf("ClearOverride: %v", err)
	}
	stored, _ := docs.Overrides.Load(ctx)
	if _, ok := stored["line-1"]; ok {
		t.Fatalf("override still stored: %v", stored)
	}
	// Clearing an absent override does not publish again.
	if err := svc.ClearOverride(ctx, "line-1"); err != nil {
		t.Fatal(err)
	}
	if len(pub.kinds) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.kinds))
	}
}

func TestSetDistribution(t *testing.T) {
	ctx := context.Background()
	svc, docs, pub, _ := newActionService(t)

	if err := svc.SetDistribution(ctx, "fixed", "Rent", 3); err != nil {
		t.Fatalf("SetDistribution: %v", err)
	}
	table, _ := docs.Distributions.Load(ctx)
	if table["fixed:Rent"].Months != 3 {
		t.Fatalf("table = %v", table)
	}
	if pub.kinds[0] != amqp.KindDistribution || pub.keys[0] != "fixed:Rent" {
		t.Fatalf("published = %v %v", pub.kinds, pub.keys)
	}

	months, err := svc.LookbackMonths(ctx, core.MonthKey{Year: 2025, Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 2 || months[1].String() != "2025-01" {
		t.Fatalf("lookback = %v", months)
	}

	// One month removes the rule.
	if err := svc.SetDistribution(ctx, "fixed", "Rent", 1); err != nil {
		t.Fatal(err)
	}
	table, _ = svc.Distributions(ctx)
	if _, ok := table["fixed:Rent"]; ok {
		t.Fatalf("rule should be removed: %v", table)
	}
}

func TestSetDistributionValidation(t *testing.T) {
	tests := []struct {
		name   string
		group  string
		cat    string
		months int
		want   error
	}{
		{"zero months", "fixed", "Rent", 0, core.ErrInvalidMonths},
		{"too many months", "fixed", "Rent", 25, core.ErrInvalidMonths},
		{"unknown group", "yachts", "Rent", 3, core.ErrUnknownGroup},
		{"missing group", "", "Rent", 3, core.ErrMissingField},
		{"missing category", "fixed", " ", 3, core.ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, docs, _, _ := newActionService(t)
			if err := svc.SetDistribution(ctx, tt.group, tt.cat, tt.months); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			table, _ := docs.Distributions.Load(ctx)
			if len(table) != 0 {
				t.Fatalf("rejected rule stored: %v", table)
			}
		})
	}
}

func TestSetLabourAllocationMerges(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, _ := newActionService(t)

	deduction := dec("500")
	err := svc.SetLabourAllocation(ctx, LabourUpdate{
		Tabs:      map[string]float64{"cafe": 70, "events": 10, "b2b": 10, "webshop": 10},
		Deduction: &deduction,
	})
	if err != nil {
		t.Fatalf("SetLabourAllocation: %v", err)
	}
	err = svc.SetLabourAllocation(ctx, LabourUpdate{
		Roles: map[string]map[string]float64{"events": {"Operations": 50, "Planning": 25, "Production": 25}},
	})
	if err != nil {
		t.Fatalf("SetLabourAllocation roles: %v", err)
	}

	got, err := svc.LabourAllocation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tabs["cafe"] != 70 {
		t.Fatalf("tabs = %v", got.Tabs)
	}
	if got.Roles["events"]["Operations"] != 50 {
		t.Fatalf("events roles = %v", got.Roles["events"])
	}
	if !got.Deduction.Equal(dec("500")) {
		t.Fatalf("deduction = %s", got.Deduction)
	}
	if len(pub.kinds) != 2 || pub.kinds[1] != amqp.KindLabour {
		t.Fatalf("published = %v", pub.kinds)
	}
}

func TestSetLabourAllocationRejects(t *testing.T) {
	ctx := context.Background()
	svc, docs, _, _ := newActionService(t)

	negative := dec("-1")
	tests := []LabourUpdate{
		{Tabs: map[string]float64{"cafe": 60, "events": 10}},
		{Deduction: &negative},
		{Roles: map[string]map[string]float64{"cafe": {"Operations": -10, "Management": 110}}},
	}
	for i, u := range tests {
		if err := svc.SetLabourAllocation(ctx, u); !errors.Is(err, core.ErrInvalidAllocation) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
	stored, _ := docs.Labour.Load(ctx)
	if stored.Tabs != nil || stored.Roles != nil {
		t.Fatalf("rejected allocation stored: %+v", stored)
	}
}

func TestSetFixedAllocation(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, _ := newActionService(t)
	march := core.MonthKey{Year: 2025, Month: 3}

	if err := svc.SetFixedAllocation(ctx, nil, fixedcosts.Allocation{Tabs: map[string]float64{"cafe": 80, "b2b": 20}}); err != nil {
		t.Fatalf("default: %v", err)
	}
	if err := svc.SetFixedAllocation(ctx, &march, fixedcosts.Allocation{Tabs: map[string]float64{"cafe": 50, "events": 50}}); err != nil {
		t.Fatalf("march: %v", err)
	}

	feb, _ := svc.FixedAllocation(ctx, march.Offset(-1))
	if feb.Tabs["cafe"] != 80 || feb.Tabs["b2b"] != 20 {
		t.Fatalf("feb = %v", feb.Tabs)
	}
	mar, _ := svc.FixedAllocation(ctx, march)
	if mar.Tabs["cafe"] != 50 || mar.Tabs["events"] != 50 {
		t.Fatalf("march = %v", mar.Tabs)
	}
	if pub.keys[1] != "2025-03" || pub.kinds[1] != amqp.KindFixedCosts {
		t.Fatalf("published = %v %v", pub.kinds, pub.keys)
	}

	if err := svc.SetFixedAllocation(ctx, nil, fixedcosts.Allocation{Tabs: map[string]float64{"cafe": 90, "b2b": 20}}); !errors.Is(err, core.ErrInvalidAllocation) {
		t.Fatalf("over 100: err = %v", err)
	}
}

func TestActionServiceWithoutPublisher(t *testing.T) {
	ctx := context.Background()
	svc := NewActionService(testRules(t), storage.NewMemoryDocuments(), nil, nil, nil)
	if err := svc.SetOverride(ctx, "line-1", "Rent"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
}

func TestPublishFailureKeepsChange(t *testing.T) {
	ctx := context.Background()
	svc, docs, pub, _ := newActionService(t)
	pub.failOn = amqp.ErrCircuitOpen

	if err := svc.SetOverride(ctx, "line-1", "Rent"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	stored, _ := docs.Overrides.Load(ctx)
	if stored["line-1"] != "Rent" {
		t.Fatal("override should survive a publish failure")
	}
}
