package categorize

import (
	"log/slog"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
	"bizreview/internal/rules"
)

var testAccounts = core.AccountTable{
	"1211": {ID: "acc-cafe", Name: "Café supplies"},
	"1815": {ID: "acc-admin", Name: "Subscriptions"},
	"1230": {ID: "acc-1230", Name: "Marketing freelance"},
	"1510": {ID: "acc-rent", Name: "Rent"},
	"1540": {ID: "acc-clean", Name: "Cleaning"},
	"1825": {ID: "acc-acct", Name: "Accounting"},
	"1218": {ID: "acc-ignored", Name: "Private"},
	"1410": {ID: "acc-salary", Name: "Salaries"},
	"1420": {ID: "acc-pension", Name: "Pension"},
	"9999": {ID: "acc-unmapped", Name: "Suspense"},
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg, err := rules.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	return NewClassifier(rules.NewRuleTable(cfg), nil)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func line(id, account, supplier string, amount int64) core.LedgerLine {
	return core.LedgerLine{ID: id, AccountID: account, SupplierName: supplier, Amount: dec(amount), Date: "2025-03-04"}
}

func TestNewClassifier_NilLoggerUsesDefault(t *testing.T) {
	c := newTestClassifier(t)
	if c.logger != slog.Default() {
		t.Fatal("nil logger should fall back to slog.Default()")
	}
}

func TestClassify_SupplierMatchOnSplitAccount(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{line("l1", "acc-cafe", "Copenhagen Bakery", 500)}, testAccounts, nil)

	bread := res.Groups["cafe"].Categories["Bread"]
	if bread == nil || !bread.Total.Equal(dec(500)) || len(bread.Lines) != 1 {
		t.Fatalf("Bread = %+v", bread)
	}
	got := bread.Lines[0]
	if got.ID != "l1" || got.SupplierName != "Copenhagen Bakery" || !got.Amount.Equal(dec(500)) || got.Date != "2025-03-04" {
		t.Fatalf("line not recorded verbatim: %+v", got)
	}
	if !res.Groups["cafe"].Total.Equal(dec(500)) {
		t.Fatalf("cafe total = %s", res.Groups["cafe"].Total)
	}
	if len(res.Uncategorized) != 0 {
		t.Fatalf("unexpected uncategorized %+v", res.Uncategorized)
	}
}

func TestClassify_UnknownSupplierOnSplitAccount(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{line("l2", "acc-cafe", "Random New Vendor Ltd", 200)}, testAccounts, nil)

	if len(res.Uncategorized) != 1 {
		t.Fatalf("uncategorized = %+v", res.Uncategorized)
	}
	u := res.Uncategorized[0]
	if u.SupplierName != "Random New Vendor Ltd" || !u.Amount.Equal(dec(200)) {
		t.Fatalf("uncategorized entry = %+v", u)
	}
	if !res.Groups.Total().IsZero() {
		t.Fatalf("group totals changed: %s", res.Groups.Total())
	}
	if len(res.Groups["other"].Categories) != 0 {
		t.Fatalf("unmatched supplier must not land in other")
	}
}

func TestClassify_AccountRulePreservesOrder(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{
		line("a", "acc-rent", "Landlord", 300),
		line("b", "acc-rent", "Landlord", 450),
	}, testAccounts, nil)

	rent := res.Groups["fixed"].Categories["Rent"]
	if !rent.Total.Equal(dec(750)) || len(rent.Lines) != 2 {
		t.Fatalf("Rent = %+v", rent)
	}
	if rent.Lines[0].ID != "a" || rent.Lines[1].ID != "b" {
		t.Fatalf("order not preserved: %+v", rent.Lines)
	}
}

func TestClassify_ZeroAmountExcluded(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{
		line("z1", "acc-rent", "Landlord", 0),
		line("z2", "acc-unmapped", "Nobody", 0),
	}, testAccounts, nil)

	if len(res.Uncategorized) != 0 || !res.Groups.Total().IsZero() || res.Ignored.Count != 0 {
		t.Fatalf("zero lines leaked: %+v", res)
	}
	for _, g := range res.Groups {
		if len(g.Categories) != 0 {
			t.Fatalf("group %s has categories", g.Key)
		}
	}
}

func TestClassify_IgnoredAndPrefixExcluded(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{
		line("i1", "acc-ignored", "Owner", 100),
		line("i2", "acc-salary", "Payroll", 20000),
		line("i3", "acc-pension", "Pension fund", 3000),
	}, testAccounts, core.OverrideTable{"i2": "Rent"})

	if len(res.Uncategorized) != 0 || !res.Groups.Total().IsZero() {
		t.Fatalf("ignored lines leaked: %+v", res)
	}
	if res.Ignored.Count != 3 || !res.Ignored.Total.Equal(dec(23100)) {
		t.Fatalf("ignored summary = %+v", res.Ignored)
	}
}

func TestClassify_OverrideWins(t *testing.T) {
	c := newTestClassifier(t)
	lines := []core.LedgerLine{
		line("o1", "acc-cafe", "Copenhagen Bakery", 120),
		line("o2", "acc-unmapped", "Who knows", 80),
		line("o3", "acc-rent", "Landlord", 60),
	}
	overrides := core.OverrideTable{
		"o1": "Marketing",
		"o2": "Insurance",
		"o3": "Retired Category",
	}
	res := c.Classify(lines, testAccounts, overrides)

	if m := res.Groups["admin"].Categories["Marketing"]; m == nil || !m.Total.Equal(dec(120)) {
		t.Fatalf("override to Marketing = %+v", m)
	}
	if _, ok := res.Groups["cafe"].Categories["Bread"]; ok {
		t.Fatalf("override must beat supplier match")
	}
	if ins := res.Groups["fixed"].Categories["Insurance"]; ins == nil || !ins.Total.Equal(dec(80)) {
		t.Fatalf("override to Insurance = %+v", ins)
	}
	if rc := res.Groups["other"].Categories["Retired Category"]; rc == nil || !rc.Total.Equal(dec(60)) {
		t.Fatalf("unknown override category should fall back to other: %+v", rc)
	}
}

func TestClassify_SubLabel(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify([]core.LedgerLine{
		line("s1", "acc-clean", "HALSNÆS EJENDOMSSERVICE ApS", 400),
		line("s2", "acc-clean", "Other Cleaner", 100),
	}, testAccounts, nil)

	fixed := res.Groups["fixed"]
	if wc := fixed.Categories["Window Cleaning"]; wc == nil || !wc.Total.Equal(dec(400)) {
		t.Fatalf("Window Cleaning = %+v", wc)
	}
	if cl := fixed.Categories["Cleaning"]; cl == nil || !cl.Total.Equal(dec(100)) {
		t.Fatalf("Cleaning = %+v", cl)
	}
	if !fixed.Total.Equal(dec(500)) {
		t.Fatalf("fixed total = %s", fixed.Total)
	}
}

func TestClassify_SupplierFallbacks(t *testing.T) {
	c := newTestClassifier(t)
	lines := []core.LedgerLine{
		{ID: "d1", AccountID: "acc-admin", Description: "CLAUDE.AI SUBSCRIPTION", Amount: dec(150)},
		{ID: "d2", AccountID: "acc-cafe", Amount: dec(10)},
		{ID: "d3", AccountID: "acc-acct", SupplierName: "Revisor", Amount: dec(900)},
		{ID: "d4", AccountID: "acc-1230", SupplierName: "Freelancer", Amount: dec(75)},
		{ID: "d5", AccountID: "not-in-table", SupplierName: "Ghost", Amount: dec(5)},
	}
	res := c.Classify(lines, testAccounts, nil)

	if m := res.Groups["admin"].Categories["Marketing"]; m == nil || !m.Total.Equal(dec(225)) {
		t.Fatalf("Marketing = %+v", m)
	}
	if a := res.Groups["accounting"].Categories["Accounting"]; a == nil || !a.Total.Equal(dec(900)) {
		t.Fatalf("Accounting = %+v", a)
	}
	if len(res.Uncategorized) != 2 {
		t.Fatalf("uncategorized = %+v", res.Uncategorized)
	}
	if res.Uncategorized[0].SupplierName != core.UnknownSupplier {
		t.Fatalf("expected Unknown supplier, got %q", res.Uncategorized[0].SupplierName)
	}
	if res.Uncategorized[1].ID != "d5" {
		t.Fatalf("line with unknown account should be uncategorized")
	}
}

func TestClassify_Conservation(t *testing.T) {
	c := newTestClassifier(t)
	lines := []core.LedgerLine{
		line("1", "acc-cafe", "Copenhagen Bakery", 500),
		line("2", "acc-cafe", "Random Vendor", 200),
		line("3", "acc-rent", "Landlord", 900),
		line("4", "acc-ignored", "Owner", 50),
		line("5", "acc-salary", "Payroll", 7000),
		line("6", "acc-unmapped", "Suspense", -40),
		line("7", "acc-admin", "Microsoft Ireland", 99),
		line("8", "acc-clean", "HALSNÆS EJENDOMSSERVICE ApS", 250),
		line("9", "acc-rent", "Landlord", 0),
	}
	overrides := core.OverrideTable{"2": "Tea"}
	res := c.Classify(lines, testAccounts, overrides)

	input := decimal.Zero
	for _, l := range lines {
		input = input.Add(l.Amount)
	}
	nonIgnored := input.Sub(res.Ignored.Total)
	got := res.Groups.Total().Add(res.UncategorizedTotal())
	if !got.Equal(nonIgnored) {
		t.Fatalf("conservation broken: groups+uncategorized=%s, input minus ignored=%s", got, nonIgnored)
	}

	for key, g := range res.Groups {
		sum := decimal.Zero
		for _, cat := range g.Categories {
			lineSum := decimal.Zero
			for _, l := range cat.Lines {
				lineSum = lineSum.Add(l.Amount)
			}
			if !lineSum.Equal(cat.Total) {
				t.Fatalf("group %s: category total %s != line sum %s", key, cat.Total, lineSum)
			}
			sum = sum.Add(cat.Total)
		}
		if !sum.Equal(g.Total) {
			t.Fatalf("group %s: total %s != category sum %s", key, g.Total, sum)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newTestClassifier(t)
	lines := []core.LedgerLine{
		line("1", "acc-cafe", "Copenhagen Bakery", 500),
		line("2", "acc-cafe", "Beverage Collection ApS", 80),
		line("3", "acc-rent", "Landlord", 900),
		line("4", "acc-unmapped", "Suspense", 40),
	}
	snapshot := append([]core.LedgerLine(nil), lines...)
	overrides := core.OverrideTable{"4": "Internet"}

	first := c.Classify(lines, testAccounts, overrides)
	second := c.Classify(lines, testAccounts, overrides)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification differs between identical calls")
	}
	if !reflect.DeepEqual(lines, snapshot) {
		t.Fatalf("input lines were modified")
	}
}
