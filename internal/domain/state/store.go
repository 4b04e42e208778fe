package state

import (
	"sync"
	"time"

	"github.com/soulscout/soulscout/internal/models"
)

// MaxHistory bounds the rolling window: 24h of one-minute updates.
const MaxHistory = 1440

// Momentum lookback tolerance: the entry 60 steps back only counts as
// "one hour ago" when its timestamp actually is 50-70 minutes behind.
const (
	m1hLookback = 60
	m1hMinAgeMs = 50 * 60 * 1000
	m1hMaxAgeMs = 70 * 60 * 1000
)

// TokenState is the rolling per-token view. History is append-only and
// monotone in timestamp; Latest is always the tail.
type TokenState struct {
	Symbol       string
	Latest       models.MarketUpdate
	History      []models.MarketUpdate
	FirstLiqTsMs int64
}

// oneHourAgo picks the reference update for the 1h momentum. The nominal
// entry sits 60 steps back; if tick cadence was irregular and that entry is
// outside 50-70 minutes behind, the entry closest to 60 minutes is used
// instead. Falls back to Latest when history is shorter than the lookback.
func (ts *TokenState) oneHourAgo() models.MarketUpdate {
	n := len(ts.History)
	if n < m1hLookback {
		return ts.Latest
	}

	candidate := ts.History[n-m1hLookback]
	age := ts.Latest.TsMs - candidate.TsMs
	if age >= m1hMinAgeMs && age <= m1hMaxAgeMs {
		return candidate
	}

	// Irregular cadence: scan for the entry closest to 60m behind.
	target := ts.Latest.TsMs - 60*60*1000
	best := ts.History[0]
	bestDist := abs64(best.TsMs - target)
	for _, md := range ts.History[1:] {
		if d := abs64(md.TsMs - target); d < bestDist {
			best = md
			bestDist = d
		}
	}
	return best
}

// M1h is the percent price change over roughly the last hour.
func (ts *TokenState) M1h() float64 {
	return pctChange(ts.oneHourAgo().Price, ts.Latest.Price)
}

// M24h is the percent price change against the oldest retained entry.
func (ts *TokenState) M24h() float64 {
	if len(ts.History) == 0 {
		return 0
	}
	return pctChange(ts.History[0].Price, ts.Latest.Price)
}

func pctChange(old, cur float64) float64 {
	if old <= 0 || cur <= 0 {
		return 0
	}
	return (cur - old) / old * 100.0
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Store holds rolling token state keyed by symbol. All queries return
// consistent snapshots; callers never see interior pointers.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]*TokenState
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tokens: make(map[string]*TokenState),
		now:    time.Now,
	}
}

// Update appends md to the symbol's history and replaces Latest, creating
// the token lazily on first sight. Oldest entries are evicted past the 24h
// bound.
func (s *Store) Update(symbol string, md models.MarketUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tokens[symbol]
	if !ok {
		ts = &TokenState{Symbol: symbol}
		s.tokens[symbol] = ts
	}

	ts.Latest = md
	ts.History = append(ts.History, md)
	if len(ts.History) > MaxHistory {
		ts.History = ts.History[len(ts.History)-MaxHistory:]
	}
	if ts.FirstLiqTsMs == 0 && md.LiqUSD > 0 {
		ts.FirstLiqTsMs = md.TsMs
	}
}

// Snapshot returns a copy of the token's state; the history slice is owned
// by the caller.
func (s *Store) Snapshot(symbol string) (TokenState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.tokens[symbol]
	if !ok {
		return TokenState{}, false
	}
	return snapshotLocked(ts), true
}

// SnapshotAll copies every token's state, for whole-market queries such as
// regime detection.
func (s *Store) SnapshotAll() []TokenState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TokenState, 0, len(s.tokens))
	for _, ts := range s.tokens {
		out = append(out, snapshotLocked(ts))
	}
	return out
}

// Symbols lists every tracked symbol.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tokens))
	for sym := range s.tokens {
		out = append(out, sym)
	}
	return out
}

// Len reports how many tokens are tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// CleanupStale evicts tokens whose latest update is older than maxAge and
// reports how many were dropped.
func (s *Store) CleanupStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UnixMilli() - maxAge.Milliseconds()
	dropped := 0
	for sym, ts := range s.tokens {
		if ts.Latest.TsMs < cutoff {
			delete(s.tokens, sym)
			dropped++
		}
	}
	return dropped
}

func snapshotLocked(ts *TokenState) TokenState {
	cp := *ts
	cp.History = append([]models.MarketUpdate(nil), ts.History...)
	return cp
}
