package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"bizreview/internal/amqp"
	"bizreview/internal/core"
	"bizreview/internal/distribution"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
	applog "bizreview/internal/log"
	"bizreview/internal/rules"
	"bizreview/internal/storage"
)

// ActionService applies the user's manual decisions: overrides,
// distribution rules and allocations. Every input is validated before a
// document is loaded, so a rejected call never writes.
type ActionService struct {
	rules       *rules.RuleTable
	docs        storage.Documents
	events      EventPublisher
	invalidator Invalidator
	logger      *slog.Logger
	audit       *applog.StructuredLogger

	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewActionService wires the stores. events and invalidator may be nil.
func NewActionService(rt *rules.RuleTable, docs storage.Documents, events EventPublisher, invalidator Invalidator, logger *slog.Logger) *ActionService {
	logger = orDefault(logger)
	return &ActionService{
		rules:       rt,
		docs:        docs,
		events:      events,
		invalidator: invalidator,
		logger:      logger,
		audit: applog.NewStructuredLogger(applog.New(applog.Config{
			Handler:   logger.Handler(),
			Component: applog.ComponentActions,
		})),
	}
}

// LabourUpdate replaces the parts of the labour allocation that are set.
type LabourUpdate struct {
	Tabs      map[string]float64
	Roles     map[string]map[string]float64
	Deduction *decimal.Decimal
}

// SetOverride pins a line to a category. The category must be one the
// mapping configuration defines.
func (s *ActionService) SetOverride(ctx context.Context, lineID, category string) error {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return core.NewValidationError("billLineId", nil, core.ErrMissingField)
	}
	if category == "" {
		return core.NewValidationError("category", nil, core.ErrMissingField)
	}
	if !s.rules.IsValidCategory(category) {
		return core.NewValidationError("category", category, core.ErrInvalidCategory)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, err := s.docs.Overrides.Load(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	overrides = overrides.Clone()
	overrides[lineID] = category
	if err := s.docs.Overrides.Save(ctx, overrides); err != nil {
		return fmt.Errorf("save overrides: %w", err)
	}

	s.audit.LogOverrideSet(ctx, lineID, category, s.rules.GroupForCategory(category))
	s.changed(ctx, amqp.KindOverride, lineID)
	return nil
}

// ClearOverride removes a line's override. Clearing an absent override is a no-op.
func (s *ActionService) ClearOverride(ctx context.Context, lineID string) error {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return core.NewValidationError("billLineId", nil, core.ErrMissingField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, err := s.docs.Overrides.Load(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	if _, ok := overrides[lineID]; !ok {
		return nil
	}
	overrides = overrides.Clone()
	delete(overrides, lineID)
	if err := s.docs.Overrides.Save(ctx, overrides); err != nil {
		return fmt.Errorf("save overrides: %w", err)
	}

	s.logger.InfoContext(ctx, "Override cleared", applog.FieldLineID, lineID)
	s.changed(ctx, amqp.KindOverride, lineID)
	return nil
}

// SetDistribution spreads a category over months. One month removes the rule.
func (s *ActionService) SetDistribution(ctx context.Context, groupKey, category string, months int) error {
	groupKey = strings.TrimSpace(groupKey)
	category = strings.TrimSpace(category)
	if groupKey == "" {
		return core.NewValidationError("groupKey", nil, core.ErrMissingField)
	}
	if category == "" {
		return core.NewValidationError("category", nil, core.ErrMissingField)
	}
	if err := core.ValidateMonths(months); err != nil {
		return err
	}
	if !s.rules.HasGroup(groupKey) {
		return core.NewValidationError("groupKey", groupKey, core.ErrUnknownGroup)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.docs.Distributions.Load(ctx)
	if err != nil {
		return fmt.Errorf("load distributions: %w", err)
	}
	table = table.Clone()
	key := core.DistributionKey(groupKey, category)
	if months <= 1 {
		delete(table, key)
	} else {
		table[key] = core.DistributionRule{Months: months}
	}
	if err := s.docs.Distributions.Save(ctx, table); err != nil {
		return fmt.Errorf("save distributions: %w", err)
	}

	s.audit.LogDistributionSet(ctx, groupKey, category, months)
	s.changed(ctx, amqp.KindDistribution, key)
	return nil
}

// SetLabourAllocation merges update into the stored allocation.
func (s *ActionService) SetLabourAllocation(ctx context.Context, update LabourUpdate) error {
	partial := labour.Allocations{Tabs: update.Tabs, Roles: update.Roles}
	if update.Deduction != nil {
		partial.Deduction = *update.Deduction
	}
	if err := partial.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.docs.Labour.Load(ctx)
	if err != nil {
		return fmt.Errorf("load labour allocation: %w", err)
	}
	if update.Tabs != nil {
		stored.Tabs = update.Tabs
	}
	if update.Roles != nil {
		if stored.Roles == nil {
			stored.Roles = make(map[string]map[string]float64, len(update.Roles))
		}
		for tab, roles := range update.Roles {
			stored.Roles[tab] = roles
		}
	}
	if update.Deduction != nil {
		stored.Deduction = *update.Deduction
	}
	if err := stored.Validate(); err != nil {
		return err
	}
	if err := s.docs.Labour.Save(ctx, stored); err != nil {
		return fmt.Errorf("save labour allocation: %w", err)
	}

	s.logger.InfoContext(ctx, "Labour allocation saved",
		applog.FieldComponent, applog.ComponentActions,
		"deduction", stored.Deduction.String())
	s.changed(ctx, amqp.KindLabour, "")
	return nil
}

// SetFixedAllocation stores the default split, or one month's when month is set.
func (s *ActionService) SetFixedAllocation(ctx context.Context, month *core.MonthKey, alloc fixedcosts.Allocation) error {
	if err := alloc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.FixedCosts.Load(ctx)
	if err != nil {
		return fmt.Errorf("load fixed cost allocation: %w", err)
	}
	doc.Set(month, alloc)
	if err := s.docs.FixedCosts.Save(ctx, doc); err != nil {
		return fmt.Errorf("save fixed cost allocation: %w", err)
	}

	key := ""
	if month != nil {
		key = month.String()
	}
	s.logger.InfoContext(ctx, "Fixed cost allocation saved",
		applog.FieldComponent, applog.ComponentActions,
		applog.FieldMonth, key)
	s.changed(ctx, amqp.KindFixedCosts, key)
	return nil
}

func (s *ActionService) Overrides(ctx context.Context) (core.OverrideTable, error) {
	t, err := s.docs.Overrides.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	if t == nil {
		t = core.OverrideTable{}
	}
	return t, nil
}

func (s *ActionService) Distributions(ctx context.Context) (core.DistributionTable, error) {
	t, err := s.docs.Distributions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load distributions: %w", err)
	}
	if t == nil {
		t = core.DistributionTable{}
	}
	return t, nil
}

// LabourAllocation returns the effective allocation, defaults filled in.
func (s *ActionService) LabourAllocation(ctx context.Context) (labour.Allocations, error) {
	a, err := s.docs.Labour.Load(ctx)
	if err != nil {
		return labour.Allocations{}, fmt.Errorf("load labour allocation: %w", err)
	}
	return a.WithDefaults(), nil
}

// FixedAllocation returns the effective split for month.
func (s *ActionService) FixedAllocation(ctx context.Context, month core.MonthKey) (fixedcosts.Allocation, error) {
	doc, err := s.docs.FixedCosts.Load(ctx)
	if err != nil {
		return fixedcosts.Allocation{}, fmt.Errorf("load fixed cost allocation: %w", err)
	}
	return doc.For(month), nil
}

// LookbackMonths reports which snapshots the current rules read for month.
func (s *ActionService) LookbackMonths(ctx context.Context, month core.MonthKey) ([]core.MonthKey, error) {
	t, err := s.Distributions(ctx)
	if err != nil {
		return nil, err
	}
	return distribution.LookbackMonths(month, t), nil
}

// changed invalidates derived results and notifies workers. Neither
// failure undoes the saved change.
func (s *ActionService) changed(ctx context.Context, kind, key string) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "Failed to invalidate report cache", "error", err)
		}
	}
	if s.events == nil {
		s.logger.DebugContext(ctx, "No event publisher, skipping rules changed message", applog.FieldEventKind, kind)
		return
	}
	if err := s.events.PublishRulesChanged(ctx, kind, key); err != nil {
		fields := applog.NewFields()
		fields[applog.FieldEventKind] = kind
		s.audit.LogError(ctx, "Failed to publish rules changed message", err, applog.ComponentAMQP, "publish_rules_changed", fields)
	}
}
