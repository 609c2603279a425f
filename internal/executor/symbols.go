package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"golang.org/x/text/unicode/norm"
)

// RegistryQuerier returns the ledger's symbol registry.
type RegistryQuerier interface {
	Info(ctx context.Context) (*ledger.InfoReturns, error)
}

// SymbolCache maps local aliases to symbol identities. It is populated from the
// registry on first use and never refreshed afterwards; a failed population leaves
// it empty so the next caller queries again.
type SymbolCache struct {
	registry RegistryQuerier
	metrics  *metrics.Metrics

	mu        sync.Mutex
	populated bool
	byAlias   map[string]identity.Identity
}

// NewSymbolCache creates an empty cache.
func NewSymbolCache(registry RegistryQuerier, m *metrics.Metrics) *SymbolCache {
	return &SymbolCache{
		registry: registry,
		metrics:  m,
	}
}

// Resolve returns the identity of symbol. A symbol already in textual identity form
// is returned as is without touching the registry.
func (c *SymbolCache) Resolve(ctx context.Context, symbol string) (identity.Identity, error) {
	if id, err := identity.FromString(symbol); err == nil {
		return id, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.populate(ctx); err != nil {
		return identity.Identity{}, apperr.New(apperr.KindSymbolResolution,
			fmt.Sprintf("could not query symbol registry for '%s'", symbol), err)
	}

	id, ok := c.byAlias[norm.NFC.String(symbol)]
	if !ok {
		return identity.Identity{}, apperr.New(apperr.KindSymbolResolution,
			fmt.Sprintf("could not resolve symbol '%s'", symbol), nil)
	}
	return id, nil
}

// Populated reports whether the registry has been loaded.
func (c *SymbolCache) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populated
}

// populate must be called with mu held.
func (c *SymbolCache) populate(ctx context.Context) error {
	if c.populated {
		return nil
	}

	c.metrics.RecordRegistryQuery()
	info, err := c.registry.Info(ctx)
	if err != nil {
		return err
	}

	byAlias := make(map[string]identity.Identity, len(info.LocalNames))
	for id, alias := range info.LocalNames {
		alias = norm.NFC.String(alias)
		// Registry order is unspecified; on duplicate aliases the smallest identity wins.
		if prev, dup := byAlias[alias]; dup && prev.String() < id.String() {
			continue
		}
		byAlias[alias] = id
	}

	c.byAlias = byAlias
	c.populated = true
	return nil
}
