package throttle

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/soulscout/soulscout/internal/domain/bands"
)

// Filter names reported on suppression, in evaluation order.
const (
	FilterCooldown  = "cooldown"
	FilterGlobalCap = "global_cap"
	FilterDedup     = "dedup"
	FilterReentry   = "reentry_guard"
)

// Config holds the throttle windows.
type Config struct {
	CooldownActionable time.Duration
	CooldownHeadsUp    time.Duration
	GlobalMaxPerHour   int
	DedupTTL           time.Duration
	ReentryGuard       time.Duration
}

// DefaultConfig mirrors the production env defaults.
func DefaultConfig() Config {
	return Config{
		CooldownActionable: 6 * time.Hour,
		CooldownHeadsUp:    1 * time.Hour,
		GlobalMaxPerHour:   5,
		DedupTTL:           21_600 * time.Second,
		ReentryGuard:       12 * time.Hour,
	}
}

// Decision reports whether an alert was admitted and which filter stopped
// it when it was not.
type Decision struct {
	Admitted bool
	Filter   string
	Reason   string
}

// Stamp is one recorded alert, exposed for /signals enumeration.
type Stamp struct {
	Symbol     string
	Band       bands.Band
	ReasonHash string
	TsMs       int64
}

type record struct {
	reasonHash string
	tsMs       int64
}

// Engine applies four suppression filters in order: per-(symbol,band)
// cooldown, global hourly cap, reason-hash dedup, re-entry guard. The
// check-and-record is a single critical section so concurrent updates for
// one symbol can never both pass within a cooldown window.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	perKey  map[string][]record // "symbol:band" -> time-ordered alerts
	stops   map[string]int64    // symbol -> last stop ts
	global  []int64             // sliding window of admitted alert timestamps
	now     func() time.Time
}

// NewEngine builds an engine with the given windows.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		perKey: make(map[string][]record),
		stops:  make(map[string]int64),
		now:    time.Now,
	}
}

// HashReasons is the stable fingerprint of an ordered reason list, used to
// detect semantic duplicates across redeliveries.
func HashReasons(reasons []string) string {
	h := fnv.New64a()
	for _, r := range reasons {
		h.Write([]byte(r))
		h.Write([]byte{'|'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func key(symbol string, band bands.Band) string {
	return symbol + ":" + band.String()
}

func (e *Engine) cooldownFor(band bands.Band) time.Duration {
	if band == bands.HeadsUp {
		return e.cfg.CooldownHeadsUp
	}
	return e.cfg.CooldownActionable
}

// Admit runs all four filters and, when every one passes, records the
// alert into the per-key history and the global window atomically.
func (e *Engine) Admit(symbol string, band bands.Band, reasons []string) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	reasonHash := HashReasons(reasons)

	// 1. Per-token cooldown.
	k := key(symbol, band)
	if hist := e.perKey[k]; len(hist) > 0 {
		last := hist[len(hist)-1]
		if nowMs-last.tsMs < e.cooldownFor(band).Milliseconds() {
			return Decision{Filter: FilterCooldown,
				Reason: fmt.Sprintf("last %s alert for %s within cooldown", band, symbol)}
		}
	}

	// 2. Global hourly cap. Evict entries older than the trailing hour
	// before counting.
	cutoff := nowMs - time.Hour.Milliseconds()
	for len(e.global) > 0 && e.global[0] < cutoff {
		e.global = e.global[1:]
	}
	if len(e.global) >= e.cfg.GlobalMaxPerHour {
		return Decision{Filter: FilterGlobalCap,
			Reason: fmt.Sprintf("global cap of %d alerts/hour reached", e.cfg.GlobalMaxPerHour)}
	}

	// 3. Reason-hash dedup across every band of this symbol.
	dedupCutoff := nowMs - e.cfg.DedupTTL.Milliseconds()
	for _, b := range []bands.Band{bands.HeadsUp, bands.Actionable, bands.HighConviction} {
		for _, rec := range e.perKey[key(symbol, b)] {
			if rec.tsMs > dedupCutoff && rec.reasonHash == reasonHash {
				return Decision{Filter: FilterDedup,
					Reason: "identical reasons alerted within dedup TTL"}
			}
		}
	}

	// 4. Re-entry guard after a recorded stop.
	if stopTs, ok := e.stops[symbol]; ok {
		if nowMs-stopTs < e.cfg.ReentryGuard.Milliseconds() {
			return Decision{Filter: FilterReentry,
				Reason: fmt.Sprintf("stop recorded for %s within re-entry guard", symbol)}
		}
	}

	e.perKey[k] = append(e.perKey[k], record{reasonHash: reasonHash, tsMs: nowMs})
	e.global = append(e.global, nowMs)
	return Decision{Admitted: true}
}

// RecordStop arms the re-entry guard for a symbol.
func (e *Engine) RecordStop(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops[symbol] = e.now().UnixMilli()
}

// Recent lists recorded alerts within the window, newest last.
func (e *Engine) Recent(window time.Duration) []Stamp {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().UnixMilli() - window.Milliseconds()
	var out []Stamp
	for k, hist := range e.perKey {
		symbol, band := splitKey(k)
		for _, rec := range hist {
			if rec.tsMs >= cutoff {
				out = append(out, Stamp{Symbol: symbol, Band: band, ReasonHash: rec.reasonHash, TsMs: rec.tsMs})
			}
		}
	}
	sortStamps(out)
	return out
}

// Cleanup evicts ledger entries and stops older than maxAge.
func (e *Engine) Cleanup(maxAge time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().UnixMilli() - maxAge.Milliseconds()

	for k, hist := range e.perKey {
		i := 0
		for i < len(hist) && hist[i].tsMs < cutoff {
			i++
		}
		if i == len(hist) {
			delete(e.perKey, k)
		} else if i > 0 {
			e.perKey[k] = hist[i:]
		}
	}

	for sym, ts := range e.stops {
		if ts < cutoff {
			delete(e.stops, sym)
		}
	}
}

func splitKey(k string) (string, bands.Band) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == ':' {
			return k[:i], bandFromString(k[i+1:])
		}
	}
	return k, bands.None
}

func bandFromString(s string) bands.Band {
	switch s {
	case "heads_up":
		return bands.HeadsUp
	case "actionable":
		return bands.Actionable
	case "high_conviction":
		return bands.HighConviction
	default:
		return bands.None
	}
}

func sortStamps(stamps []Stamp) {
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].TsMs < stamps[j].TsMs })
}
