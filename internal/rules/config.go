// Package rules holds the mapping configuration and the read-only rule
// table derived from it.
//
// The configuration is YAML. A default mapping is embedded and used when
// no MAPPING_FILE is configured.
package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bizreview/internal/core"
)

//go:embed default.yaml
var defaultMapping []byte

type (
	// Config mirrors the YAML mapping document.
	Config struct {
		Revenue        []RevenueStream `yaml:"revenue"`
		Groups         []GroupConfig   `yaml:"groups"`
		Ignore         []string        `yaml:"ignore"`
		IgnorePrefixes []string        `yaml:"ignorePrefixes"`
		Labour         LabourConfig    `yaml:"labour"`
		Tabs           []TabConfig     `yaml:"tabs"`
	}

	RevenueStream struct {
		Stream  string `yaml:"stream" json:"stream"`
		Account string `yaml:"account" json:"account"`
	}

	// GroupConfig describes one cost group. Account is the supplier-split
	// account when Suppliers is set; without Suppliers the whole account maps
	// to a single category named after the group label.
	GroupConfig struct {
		Key       string             `yaml:"key"`
		Label     string             `yaml:"label"`
		Icon      string             `yaml:"icon"`
		Account   string             `yaml:"account"`
		Suppliers []SupplierCategory `yaml:"suppliers"`
		Accounts  []AccountCategory  `yaml:"accounts"`
		SubLabels []SubLabel         `yaml:"subLabels"`
	}

	SupplierCategory struct {
		Category string   `yaml:"category"`
		Names    []string `yaml:"names"`
	}

	AccountCategory struct {
		Code     string `yaml:"code"`
		Category string `yaml:"category"`
	}

	SubLabel struct {
		Account  string `yaml:"account"`
		Supplier string `yaml:"supplier"`
		Label    string `yaml:"label"`
	}

	LabourConfig struct {
		AccountPrefix string              `yaml:"accountPrefix"`
		Label         string              `yaml:"label"`
		Icon          string              `yaml:"icon"`
		Roles         map[string][]string `yaml:"roles"`
	}

	// TabConfig selects the revenue streams and cost groups of one business line.
	TabConfig struct {
		Key     string   `yaml:"key" json:"key"`
		Revenue []string `yaml:"revenue" json:"revenue"`
		Groups  []string `yaml:"groups" json:"groups"`
	}
)

// DefaultConfig returns the embedded mapping.
func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultMapping)
}

// LoadConfig reads a mapping file; an empty path selects the embedded default.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML mapping. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural consistency and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Groups) == 0 {
		errs = append(errs, "at least one cost group is required")
	}

	groupKeys := make(map[string]bool)
	accountOwner := make(map[string]string)
	claim := func(code, group string) {
		if code == "" {
			errs = append(errs, fmt.Sprintf("group %q: empty account code", group))
			return
		}
		if prev, ok := accountOwner[code]; ok {
			errs = append(errs, fmt.Sprintf("account %s is mapped by both %q and %q", code, prev, group))
			return
		}
		accountOwner[code] = group
	}

	for i, g := range c.Groups {
		switch {
		case g.Key == "":
			errs = append(errs, fmt.Sprintf("group #%d: key is required", i+1))
			continue
		case strings.Contains(g.Key, ":"):
			errs = append(errs, fmt.Sprintf("group %q: key must not contain ':'", g.Key))
		case g.Key == core.LabourGroupKey:
			errs = append(errs, fmt.Sprintf("group %q: key is reserved for the labour allocation", g.Key))
		case groupKeys[g.Key]:
			errs = append(errs, fmt.Sprintf("group %q: duplicate key", g.Key))
		}
		groupKeys[g.Key] = true

		if strings.TrimSpace(g.Label) == "" {
			errs = append(errs, fmt.Sprintf("group %q: label is required", g.Key))
		}
		if len(g.Suppliers) > 0 && g.Account == "" {
			errs = append(errs, fmt.Sprintf("group %q: suppliers need a supplier-split account", g.Key))
		}
		if g.Account != "" {
			claim(g.Account, g.Key)
		}
		for _, s := range g.Suppliers {
			if strings.TrimSpace(s.Category) == "" {
				errs = append(errs, fmt.Sprintf("group %q: supplier category name is required", g.Key))
			}
			if len(s.Names) == 0 {
				errs = append(errs, fmt.Sprintf("group %q: category %q lists no suppliers", g.Key, s.Category))
			}
		}
		for _, a := range g.Accounts {
			claim(a.Code, g.Key)
			if strings.TrimSpace(a.Category) == "" {
				errs = append(errs, fmt.Sprintf("group %q: account %s has no category", g.Key, a.Code))
			}
		}
		for _, s := range g.SubLabels {
			if s.Account == "" || strings.TrimSpace(s.Supplier) == "" || strings.TrimSpace(s.Label) == "" {
				errs = append(errs, fmt.Sprintf("group %q: sub-label needs account, supplier and label", g.Key))
			}
		}
	}

	if len(c.Groups) > 0 && !groupKeys[core.DefaultGroupKey] {
		errs = append(errs, fmt.Sprintf("a %q group is required as override fallback", core.DefaultGroupKey))
	}

	streams := make(map[string]bool)
	revenueCodes := make(map[string]bool)
	for _, r := range c.Revenue {
		if r.Stream == "" || r.Account == "" {
			errs = append(errs, "revenue streams need both stream and account")
			continue
		}
		if streams[r.Stream] {
			errs = append(errs, fmt.Sprintf("revenue stream %q: duplicate", r.Stream))
		}
		if revenueCodes[r.Account] {
			errs = append(errs, fmt.Sprintf("revenue account %s: mapped to more than one stream", r.Account))
		}
		streams[r.Stream] = true
		revenueCodes[r.Account] = true
	}

	for _, tab := range c.Tabs {
		if tab.Key == "" {
			errs = append(errs, "tab key is required")
			continue
		}
		for _, s := range tab.Revenue {
			if !streams[s] {
				errs = append(errs, fmt.Sprintf("tab %q: unknown revenue stream %q", tab.Key, s))
			}
		}
		for _, g := range tab.Groups {
			if !groupKeys[g] && g != core.LabourGroupKey {
				errs = append(errs, fmt.Sprintf("tab %q: unknown cost group %q", tab.Key, g))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("mapping validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
