package rules

import (
	"testing"
)

func defaultTable(t *testing.T) *RuleTable {
	t.Helper()
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	return NewRuleTable(cfg)
}

func TestRuleTable_AllCategories(t *testing.T) {
	tbl := defaultTable(t)
	cats := tbl.AllCategories()
	want := []string{
		"Bread", "Ingredients", "Tea", "Soft Drinks",
		"Coffee EU", "Coffee Import", "Coffee Packaging",
		"Admin", "Marketing",
		"Accounting",
		"Rent", "Electricity", "Trash Service", "Cleaning", "Renovations", "Internet", "Insurance",
		"Webshop Shipping", "Webshop Hosting",
		"Small Equipment",
	}
	if len(cats) != len(want) {
		t.Fatalf("categories = %v", cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Fatalf("categories[%d] = %q, want %q", i, cats[i], want[i])
		}
	}
	if tbl.IsValidCategory("Window Cleaning") {
		t.Fatalf("sub-labels are not assignable categories")
	}
}

func TestRuleTable_GroupForCategory(t *testing.T) {
	tbl := defaultTable(t)
	cases := map[string]string{
		"Bread":           "cafe",
		"Marketing":       "admin",
		"Accounting":      "accounting",
		"Insurance":       "fixed",
		"Window Cleaning": "fixed",
		"Small Equipment": "other",
		"No Such Thing":   "other",
	}
	for cat, want := range cases {
		if got := tbl.GroupForCategory(cat); got != want {
			t.Errorf("GroupForCategory(%q) = %q, want %q", cat, got, want)
		}
	}
}

func TestRuleTable_Lookups(t *testing.T) {
	tbl := defaultTable(t)

	if g, m, ok := tbl.SplitAccount("1211"); !ok || g != "cafe" || m.Len() == 0 {
		t.Fatalf("café split account not found")
	}
	if _, _, ok := tbl.SplitAccount("1510"); ok {
		t.Fatalf("1510 is not a split account")
	}
	if g, c, ok := tbl.AccountRule("1230"); !ok || g != "admin" || c != "Marketing" {
		t.Fatalf("extra account 1230 = %q %q %v", g, c, ok)
	}
	if g, c, ok := tbl.AccountRule("1825"); !ok || g != "accounting" || c != "Accounting" {
		t.Fatalf("whole-account 1825 = %q %q %v", g, c, ok)
	}
	if l, ok := tbl.SubLabel("1540", "halsnæs ejendomsservice aps "); !ok || l != "Window Cleaning" {
		t.Fatalf("sub-label = %q %v", l, ok)
	}
	if s, ok := tbl.RevenueStream("1144"); !ok || s != "b2b_eu" {
		t.Fatalf("revenue stream = %q %v", s, ok)
	}
}

func TestRuleTable_IsIgnored(t *testing.T) {
	tbl := defaultTable(t)
	cases := map[string]bool{
		"1218": true,
		"1410": true,
		"14":   true,
		"1211": false,
		"2140": false,
		"":     false,
	}
	for code, want := range cases {
		if got := tbl.IsIgnored(code); got != want {
			t.Errorf("IsIgnored(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestRuleTable_NewGroups(t *testing.T) {
	tbl := defaultTable(t)
	groups := tbl.NewGroups()
	if len(groups) != 7 {
		t.Fatalf("groups = %d", len(groups))
	}
	if groups["cafe"].Label != "Café Costs" || !groups["cafe"].Total.IsZero() {
		t.Fatalf("cafe group = %+v", groups["cafe"])
	}
	if !tbl.HasGroup("labour") || tbl.HasGroup("nope") {
		t.Fatalf("HasGroup misbehaves")
	}
	if tab, ok := tbl.Tab("b2b"); !ok || len(tab.Revenue) != 2 {
		t.Fatalf("b2b tab = %+v", tab)
	}
}
