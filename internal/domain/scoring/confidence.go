package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/soulscout/soulscout/internal/domain/signals"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

// ErrBadWeights is returned when the configured weights cannot form a score.
var ErrBadWeights = errors.New("signal weights must sum to a positive value")

// rugCapCeiling caps the raw score when rug risk is critical (S7 < 0.3).
const rugCapCeiling = 55.0

// dqHeadsUpFloor forces the heads-up band when data quality drops below it.
const dqHeadsUpFloor = 0.7

// Weights holds the per-signal contribution to the raw score. They are
// expected to sum to roughly 1.0.
type Weights struct {
	S1  float64 `yaml:"s1"`
	S2  float64 `yaml:"s2"`
	S3  float64 `yaml:"s3"`
	S4  float64 `yaml:"s4"`
	S5  float64 `yaml:"s5"`
	S6  float64 `yaml:"s6"`
	S7  float64 `yaml:"s7"`
	S8  float64 `yaml:"s8"`
	S9  float64 `yaml:"s9"`
	S10 float64 `yaml:"s10"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{
		S1:  0.15,
		S2:  0.12,
		S3:  0.08,
		S4:  0.18,
		S5:  0.10,
		S6:  0.08,
		S7:  0.12,
		S8:  0.10,
		S9:  0.05,
		S10: 0.02,
	}
}

func (w Weights) sum() float64 {
	return w.S1 + w.S2 + w.S3 + w.S4 + w.S5 + w.S6 + w.S7 + w.S8 + w.S9 + w.S10
}

// Result is the scored outcome for one update.
type Result struct {
	Raw             float64
	DataQuality     float64
	Penalties       float64
	Confidence      float64
	RugCapApplied   bool
	YoungAndRisky   bool
	DQForcedHeadsUp bool
	Reasons         []string
}

// Scorer turns signal scores into a confidence value in [0,100]. Compute is
// pure and deterministic for fixed inputs and weights.
type Scorer struct {
	weights Weights
}

// NewScorer validates the weights and builds a scorer.
func NewScorer(w Weights) (*Scorer, error) {
	if w.sum() <= 0 {
		return nil, ErrBadWeights
	}
	return &Scorer{weights: w}, nil
}

// Compute derives raw score, data quality, penalties and the final
// confidence C = max(0, R - P), together with flags and reason lines.
func (s *Scorer) Compute(ts state.TokenState, sc signals.Scores) Result {
	w := s.weights
	res := Result{}

	res.Raw = 100.0 * (sc.S1*w.S1 + sc.S2*w.S2 + sc.S3*w.S3 + sc.S4*w.S4 +
		sc.S5*w.S5 + sc.S6*w.S6 + sc.S7*w.S7 + sc.S8*w.S8 +
		sc.S9*w.S9 + sc.S10*w.S10)

	md := ts.Latest
	res.DataQuality = dataQuality(sc, md)
	res.YoungAndRisky = md.AgeHours < 72.0 && sc.S7 < 0.6

	if sc.S7 < 0.3 {
		res.RugCapApplied = true
		res.Raw = math.Min(res.Raw, rugCapCeiling)
		res.Reasons = append(res.Reasons, "Rug risk critical: score capped")
	}

	res.Penalties, res.Reasons = penalties(md, sc, res.Reasons)

	if sc.N1 < 1.0 {
		res.Penalties += 10.0
		res.Reasons = append(res.Reasons, "Not on widely mirrored lists")
	}

	res.Confidence = math.Max(0.0, res.Raw-res.Penalties)
	res.DQForcedHeadsUp = res.DataQuality < dqHeadsUpFloor
	if res.DQForcedHeadsUp {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("Data quality %.2f below %.2f: capped at heads-up", res.DataQuality, dqHeadsUpFloor))
	}

	return res
}

// dataQuality starts at 1.0 and subtracts 0.08 per missing or reconstructed
// key input.
func dataQuality(sc signals.Scores, md models.MarketUpdate) float64 {
	dq := 1.0
	if sc.S1 < 0.1 {
		dq -= 0.08
	}
	if sc.S2 < 0.1 {
		dq -= 0.08
	}
	if sc.S4 < 0.1 {
		dq -= 0.08
	}
	if md.Bar5m.VUSD == 0 {
		dq -= 0.08
	}
	if md.Bar15m.VUSD == 0 {
		dq -= 0.08
	}
	if md.DQ == models.DQDegraded {
		dq -= 0.08
	}
	return math.Max(0.0, dq)
}

func penalties(md models.MarketUpdate, sc signals.Scores, reasons []string) (float64, []string) {
	p := 0.0

	switch {
	case md.AgeHours < 24.0:
		p += 15.0
		reasons = append(reasons, "Token younger than 24h")
	case md.AgeHours < 48.0:
		p += 5.0
		reasons = append(reasons, "Token younger than 48h")
	}

	if md.SpreadPct > 1.5 {
		p += 5.0
		reasons = append(reasons, "Wide spread")
	}
	if md.Impact1PctPct > 1.0 {
		p += 5.0
		reasons = append(reasons, "High price impact")
	}
	if sc.S9 < 0.5 {
		p += 3.0
		reasons = append(reasons, "Volume trend fading")
	}

	return p, reasons
}
