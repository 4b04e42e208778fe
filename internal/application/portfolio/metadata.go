package portfolio

import (
	"sync"
	"time"
)

// Metadata is the display info for a mint.
type Metadata struct {
	Mint     string
	Symbol   string
	Name     string
	cachedAt time.Time
}

// MetadataCache maps mints to symbols with a TTL. Unrecognized mints
// resolve to a truncated-mint placeholder so holdings always render.
type MetadataCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	known map[string]Metadata
	now   func() time.Time
}

func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		ttl:   ttl,
		known: make(map[string]Metadata),
		now:   time.Now,
	}
}

// Register seeds the cache with a known mint, e.g. from configuration.
// Registered entries never expire.
func (c *MetadataCache) Register(mint, symbol, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[mint] = Metadata{Mint: mint, Symbol: symbol, Name: name}
}

// Lookup resolves a mint, synthesizing a placeholder on a miss.
func (c *MetadataCache) Lookup(mint string) Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.known[mint]; ok {
		if m.cachedAt.IsZero() || c.now().Sub(m.cachedAt) <= c.ttl {
			return m
		}
		delete(c.known, mint)
	}

	m := Metadata{
		Mint:     mint,
		Symbol:   shortMint(mint),
		Name:     "Unknown Token",
		cachedAt: c.now(),
	}
	c.known[mint] = m
	return m
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-2:]
}
