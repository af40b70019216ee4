package ledger

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"bizreview/internal/core"
)

const accountsKey = "accounts"

// CachedSource keeps the chart of accounts in memory; line queries always
// go to the wrapped source.
type CachedSource struct {
	Source
	accounts *cache.Cache
}

func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSource{Source: src, accounts: cache.New(ttl, 2*ttl)}
}

func (c *CachedSource) Accounts(ctx context.Context) (core.AccountTable, error) {
	if v, ok := c.accounts.Get(accountsKey); ok {
		return v.(core.AccountTable), nil
	}
	table, err := c.Source.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	c.accounts.SetDefault(accountsKey, table)
	return table, nil
}

// Invalidate forces the next Accounts call through to the source.
func (c *CachedSource) Invalidate() {
	c.accounts.Flush()
}
