package rules

import (
	"sort"
	"strings"

	"bizreview/internal/core"
)

// GroupDef is the display identity of a configured cost group.
type GroupDef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

type accountRule struct {
	group    string
	category string
}

type splitRule struct {
	group   string
	matcher *SupplierMatcher
}

// RuleTable is built once from a Config and shared read-only by every
// classification call. All lookups are keyed by account code.
type RuleTable struct {
	groups         []GroupDef
	groupIndex     map[string]int
	splitAccounts  map[string]splitRule
	accountRules   map[string]accountRule
	subLabels      map[string]map[string]string
	ignore         map[string]struct{}
	ignorePrefixes []string
	categoryGroup  map[string]string
	categories     []string
	groupCats      map[string][]string
	revenue        map[string]string
	streams        []RevenueStream
	labour         LabourConfig
	tabs           map[string]TabConfig
	tabOrder       []string
	suggester      *SupplierMatcher
}

// NewRuleTable precomputes every lookup the classifier needs.
func NewRuleTable(cfg *Config) *RuleTable {
	t := &RuleTable{
		groupIndex:    make(map[string]int, len(cfg.Groups)),
		splitAccounts: make(map[string]splitRule),
		accountRules:  make(map[string]accountRule),
		subLabels:     make(map[string]map[string]string),
		ignore:        make(map[string]struct{}, len(cfg.Ignore)),
		categoryGroup: make(map[string]string),
		groupCats:     make(map[string][]string, len(cfg.Groups)),
		revenue:       make(map[string]string, len(cfg.Revenue)),
		streams:       append([]RevenueStream(nil), cfg.Revenue...),
		labour:        cfg.Labour,
		tabs:          make(map[string]TabConfig, len(cfg.Tabs)),
	}

	seen := make(map[string]bool)
	addCategory := func(group, name string) {
		if _, ok := t.categoryGroup[name]; !ok {
			t.categoryGroup[name] = group
		}
		if !containsString(t.groupCats[group], name) {
			t.groupCats[group] = append(t.groupCats[group], name)
		}
		if !seen[name] {
			seen[name] = true
			t.categories = append(t.categories, name)
		}
	}

	var allSuppliers []SupplierEntry
	for i, g := range cfg.Groups {
		t.groups = append(t.groups, GroupDef{Key: g.Key, Label: g.Label, Icon: g.Icon})
		t.groupIndex[g.Key] = i

		if len(g.Suppliers) > 0 {
			var entries []SupplierEntry
			for _, sc := range g.Suppliers {
				addCategory(g.Key, sc.Category)
				for _, name := range sc.Names {
					entries = append(entries, SupplierEntry{Name: name, Category: sc.Category})
				}
			}
			t.splitAccounts[g.Account] = splitRule{group: g.Key, matcher: NewSupplierMatcher(entries)}
			allSuppliers = append(allSuppliers, entries...)
		} else if g.Account != "" {
			t.accountRules[g.Account] = accountRule{group: g.Key, category: g.Label}
			addCategory(g.Key, g.Label)
		}

		for _, ac := range g.Accounts {
			t.accountRules[ac.Code] = accountRule{group: g.Key, category: ac.Category}
			addCategory(g.Key, ac.Category)
		}

		for _, sl := range g.SubLabels {
			if t.subLabels[sl.Account] == nil {
				t.subLabels[sl.Account] = make(map[string]string)
			}
			t.subLabels[sl.Account][NormalizeName(sl.Supplier)] = sl.Label
			if _, ok := t.categoryGroup[sl.Label]; !ok {
				t.categoryGroup[sl.Label] = g.Key
			}
		}
	}
	t.suggester = NewSupplierMatcher(allSuppliers)

	for _, code := range cfg.Ignore {
		t.ignore[code] = struct{}{}
	}
	t.ignorePrefixes = append(t.ignorePrefixes, cfg.IgnorePrefixes...)
	if cfg.Labour.AccountPrefix != "" {
		t.ignorePrefixes = append(t.ignorePrefixes, cfg.Labour.AccountPrefix)
	}

	for _, r := range cfg.Revenue {
		t.revenue[r.Account] = r.Stream
	}
	for _, tab := range cfg.Tabs {
		t.tabs[tab.Key] = tab
		t.tabOrder = append(t.tabOrder, tab.Key)
	}
	return t
}

// Groups returns the configured groups in display order.
func (t *RuleTable) Groups() []GroupDef {
	return append([]GroupDef(nil), t.groups...)
}

func (t *RuleTable) Group(key string) (GroupDef, bool) {
	i, ok := t.groupIndex[key]
	if !ok {
		return GroupDef{}, false
	}
	return t.groups[i], true
}

// HasGroup also accepts the labour group.
func (t *RuleTable) HasGroup(key string) bool {
	_, ok := t.groupIndex[key]
	return ok || key == core.LabourGroupKey
}

// NewGroups returns one empty cost group per configured group.
func (t *RuleTable) NewGroups() core.Groups {
	out := make(core.Groups, len(t.groups))
	for _, g := range t.groups {
		out[g.Key] = core.NewCostGroup(g.Key, g.Label, g.Icon)
	}
	return out
}

// AllCategories lists every assignable category once, in display order.
func (t *RuleTable) AllCategories() []string {
	return append([]string(nil), t.categories...)
}

// GroupCategories returns the categories a group can hold, in display order.
func (t *RuleTable) GroupCategories(group string) []string {
	return append([]string(nil), t.groupCats[group]...)
}

func (t *RuleTable) IsValidCategory(name string) bool {
	return containsString(t.categories, name)
}

// GroupForCategory resolves the owning group of a category; unknown
// categories fall back to the default group.
func (t *RuleTable) GroupForCategory(name string) string {
	if g, ok := t.categoryGroup[name]; ok {
		return g
	}
	return core.DefaultGroupKey
}

// IsIgnored reports whether an account code is excluded from classification.
func (t *RuleTable) IsIgnored(code string) bool {
	if code == "" {
		return false
	}
	if _, ok := t.ignore[code]; ok {
		return true
	}
	for _, p := range t.ignorePrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// SplitAccount returns the group and matcher of a supplier-split account.
func (t *RuleTable) SplitAccount(code string) (string, *SupplierMatcher, bool) {
	r, ok := t.splitAccounts[code]
	if !ok {
		return "", nil, false
	}
	return r.group, r.matcher, true
}

// AccountRule returns the group and category an account code maps to.
func (t *RuleTable) AccountRule(code string) (group, category string, ok bool) {
	r, ok := t.accountRules[code]
	return r.group, r.category, ok
}

// SubLabel returns a supplier-specific relabel for an account, if configured.
func (t *RuleTable) SubLabel(code, supplier string) (string, bool) {
	labels, ok := t.subLabels[code]
	if !ok {
		return "", false
	}
	label, ok := labels[NormalizeName(supplier)]
	return label, ok
}

// Suggest proposes a category for an unclassified supplier name.
func (t *RuleTable) Suggest(supplier string) (string, bool) {
	return t.suggester.Suggest(supplier)
}

// RevenueStream maps a revenue account code to its stream.
func (t *RuleTable) RevenueStream(code string) (string, bool) {
	s, ok := t.revenue[code]
	return s, ok
}

func (t *RuleTable) RevenueStreams() []RevenueStream {
	return append([]RevenueStream(nil), t.streams...)
}

func (t *RuleTable) Labour() LabourConfig {
	return t.labour
}

func (t *RuleTable) Tab(key string) (TabConfig, bool) {
	tab, ok := t.tabs[key]
	return tab, ok
}

// Tabs returns the configured tab keys in order.
func (t *RuleTable) Tabs() []string {
	return append([]string(nil), t.tabOrder...)
}

// IgnoredCodes returns the explicit ignore set, sorted.
func (t *RuleTable) IgnoredCodes() []string {
	out := make([]string, 0, len(t.ignore))
	for code := range t.ignore {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
