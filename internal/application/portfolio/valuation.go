package portfolio

import (
	"fmt"
	"sort"
)

// Valuation tags, in cascade order. EST_50 values count only toward the
// haircut subtotal, never the headline total.
const (
	TagCG    = "CG"
	TagDEX   = "DEX"
	TagEst50 = "EST_50"
	TagNA    = "NA"
)

// Holding is one token position. Priced is false for NA holdings.
type Holding struct {
	Mint     string
	Symbol   string
	Amount   float64
	USDPrice float64
	USDValue float64
	Priced   bool
	Tag      string
}

// Summary is the valued portfolio. Holdings are sorted by USD value
// descending with unpriced entries last.
type Summary struct {
	TotalUSD           float64
	IncludedCount      int
	ExcludedCount      int
	HaircutSubtotalUSD float64
	Holdings           []Holding
	Notes              string
}

// Valuator applies the dust filter and the haircut policy.
type Valuator struct {
	dustMinUSD float64
	haircutPct int
}

func NewValuator(dustMinUSD float64, haircutPct int) *Valuator {
	return &Valuator{dustMinUSD: dustMinUSD, haircutPct: haircutPct}
}

func (v *Valuator) isDust(h Holding) bool {
	return h.Priced && h.USDValue < v.dustMinUSD
}

// Value aggregates holdings into a summary. CG and DEX prices go into
// the headline total; EST_50 holdings carry their haircut value in a
// separate subtotal; NA holdings are counted but not valued.
func (v *Valuator) Value(holdings []Holding) Summary {
	var s Summary

	for _, h := range holdings {
		if v.isDust(h) {
			continue
		}

		switch h.Tag {
		case TagCG, TagDEX:
			if h.Priced {
				s.TotalUSD += h.USDValue
				s.IncludedCount++
				s.Holdings = append(s.Holdings, h)
			}
		case TagEst50:
			if h.Priced {
				h.USDValue = h.USDValue * float64(v.haircutPct) / 100
				s.HaircutSubtotalUSD += h.USDValue
				s.Holdings = append(s.Holdings, h)
			}
		default:
			s.ExcludedCount++
		}
	}

	sort.SliceStable(s.Holdings, func(i, j int) bool {
		a, b := s.Holdings[i], s.Holdings[j]
		if !a.Priced {
			return false
		}
		if !b.Priced {
			return true
		}
		return a.USDValue > b.USDValue
	})

	if s.ExcludedCount > 0 {
		s.Notes = fmt.Sprintf("Excludes %d unpriced tokens.", s.ExcludedCount)
	}
	if s.HaircutSubtotalUSD > 0 {
		if s.Notes != "" {
			s.Notes += " "
		}
		s.Notes += fmt.Sprintf("Haircut subtotal: $%.2f", s.HaircutSubtotalUSD)
	}
	return s
}
