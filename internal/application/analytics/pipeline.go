package analytics

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/domain/bands"
	"github.com/soulscout/soulscout/internal/domain/entryexit"
	"github.com/soulscout/soulscout/internal/domain/regime"
	"github.com/soulscout/soulscout/internal/domain/scoring"
	"github.com/soulscout/soulscout/internal/domain/signals"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/domain/throttle"
	"github.com/soulscout/soulscout/internal/models"
)

// Outcome is the decision for one market update: the classified band and,
// when the throttles admit it, the alert to publish.
type Outcome struct {
	Symbol     string
	Band       bands.Band
	Confidence float64
	Alert      *models.Alert
	Suppressed bool
	Filter     string
}

// Pipeline runs the per-update decision chain over the shared state
// store and throttle engine. Safe for concurrent use: the store and the
// engine serialize internally, everything else is pure.
type Pipeline struct {
	store         *state.Store
	calc          *signals.Calculator
	scorer        *scoring.Scorer
	engine        *throttle.Engine
	baseThreshold int
}

func NewPipeline(store *state.Store, calc *signals.Calculator, scorer *scoring.Scorer,
	engine *throttle.Engine, baseThreshold int) *Pipeline {
	return &Pipeline{
		store:         store,
		calc:          calc,
		scorer:        scorer,
		engine:        engine,
		baseThreshold: baseThreshold,
	}
}

// Process folds the update into rolling state, scores it against the
// given regime assessment and applies the band table and throttles.
func (p *Pipeline) Process(md models.MarketUpdate, assessment regime.Assessment) Outcome {
	p.store.Update(md.Symbol, md)

	ts, ok := p.store.Snapshot(md.Symbol)
	if !ok {
		return Outcome{Symbol: md.Symbol, Band: bands.None}
	}

	scores := p.calc.Compute(ts)
	res := p.scorer.Compute(ts, scores)

	confirmation := entryexit.CheckEntryConfirmation(ts)
	edge := entryexit.CheckNetEdge(ts)

	band := bands.Classify(bands.Inputs{
		Confidence:      res.Confidence,
		DQForcedHeadsUp: res.DQForcedHeadsUp,
		RugCapApplied:   res.RugCapApplied,
		YoungAndRisky:   res.YoungAndRisky,
		EntryConfirmed:  confirmation.Confirmed,
		NetEdgeOK:       edge.Passes,
		Threshold:       p.baseThreshold + assessment.ThresholdAdj,
	})

	out := Outcome{Symbol: md.Symbol, Band: band, Confidence: res.Confidence}
	if band == bands.None {
		return out
	}

	lines := reasonLines(ts, res, confirmation, edge, assessment)

	decision := p.engine.Admit(md.Symbol, band, lines)
	if !decision.Admitted {
		out.Suppressed = true
		out.Filter = decision.Filter
		log.Debug().Str("symbol", md.Symbol).Str("band", band.String()).
			Str("filter", decision.Filter).Str("reason", decision.Reason).
			Msg("alert suppressed")
		return out
	}

	alert := buildAlert(band, md, res, lines)
	out.Alert = &alert
	return out
}

// buildAlert assembles the outbound payload for an admitted update.
func buildAlert(band bands.Band, md models.MarketUpdate, res scoring.Result, lines []string) models.Alert {
	return models.Alert{
		Severity:     band.String(),
		Symbol:       md.Symbol,
		Price:        md.Price,
		Confidence:   int(res.Confidence),
		Lines:        lines,
		Plan:         entryexit.DefaultExitPlan,
		SolPath:      solPath(md.Route),
		EstImpactPct: md.Impact1PctPct,
		CorrID:       uuid.New().String(),
		Ts:           models.NowISO8601(),
	}
}
