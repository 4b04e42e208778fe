package analytics

import (
	"fmt"

	"github.com/soulscout/soulscout/internal/domain/entryexit"
	"github.com/soulscout/soulscout/internal/domain/regime"
	"github.com/soulscout/soulscout/internal/domain/scoring"
	"github.com/soulscout/soulscout/internal/domain/state"
	"github.com/soulscout/soulscout/internal/models"
)

// reasonLines renders the decision into ordered human-readable lines.
// Ordering is stable for identical inputs: the list feeds the dedup hash.
func reasonLines(ts state.TokenState, res scoring.Result,
	confirmation entryexit.Confirmation, edge entryexit.NetEdge,
	assessment regime.Assessment) []string {

	md := ts.Latest
	lines := []string{
		fmt.Sprintf("Momentum %+.1f%% 1h / %+.1f%% 24h", ts.M1h(), ts.M24h()),
		fmt.Sprintf("Liquidity $%.0fk, 24h volume $%.0fk", md.LiqUSD/1000, md.Vol24hUSD/1000),
		fmt.Sprintf("Execution: spread %.2f%%, impact %.2f%%", md.SpreadPct, md.Impact1PctPct),
	}

	switch confirmation.Method {
	case "retest_hold":
		lines = append(lines, "Entry confirmed: retest and hold")
	case "quick_pullback":
		lines = append(lines, "Entry confirmed: quick pullback")
	case "none":
		lines = append(lines, "Entry unconfirmed after momentum spike")
	}

	if edge.Passes {
		lines = append(lines, fmt.Sprintf("Net edge: %.1f%% upside vs %.1f%% cost", edge.UpsidePct, edge.CostPct))
	} else {
		lines = append(lines, fmt.Sprintf("Net edge thin: %.1f%% upside vs %.1f%% cost", edge.UpsidePct, edge.CostPct))
	}

	lines = append(lines, assessment.Description)
	lines = append(lines, res.Reasons...)
	return lines
}

// solPath renders the route descriptor shown to the user.
func solPath(r models.Route) string {
	if !r.OK {
		return "no route to quote"
	}
	if r.Hops <= 1 {
		return "direct"
	}
	return fmt.Sprintf("%d hops via aggregator (dev %.1f%%)", r.Hops, r.DevPct)
}
