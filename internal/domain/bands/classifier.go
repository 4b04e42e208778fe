package bands

// Band is the discrete severity class of an alert.
type Band int

const (
	None Band = iota
	HeadsUp
	Actionable
	HighConviction
)

func (b Band) String() string {
	switch b {
	case HeadsUp:
		return "heads_up"
	case Actionable:
		return "actionable"
	case HighConviction:
		return "high_conviction"
	default:
		return "none"
	}
}

// headsUpFloor is the minimum confidence for any alert at all.
const headsUpFloor = 60.0

// highConvictionFloor admits high conviction absent hard risk flags.
const highConvictionFloor = 85.0

// Inputs are the classifier's decision factors: the scored confidence, the
// scorer's risk flags, the entry/edge gates, and the regime-adjusted
// actionable threshold.
type Inputs struct {
	Confidence      float64
	DQForcedHeadsUp bool
	RugCapApplied   bool
	YoungAndRisky   bool
	EntryConfirmed  bool
	NetEdgeOK       bool
	Threshold       int
}

// Classify applies the decision table, first match wins:
//
//  1. dq gate with C >= 60        -> heads_up
//  2. dq gate with C < 60         -> none
//  3. entry or edge fail, C >= 60 -> heads_up
//  4. C >= 85, no hard risk flags -> high_conviction
//  5. C >= adjusted threshold     -> actionable
//  6. C >= 60                     -> heads_up
//  7. otherwise                   -> none
func Classify(in Inputs) Band {
	switch {
	case in.DQForcedHeadsUp && in.Confidence >= headsUpFloor:
		return HeadsUp
	case in.DQForcedHeadsUp:
		return None
	case (!in.EntryConfirmed || !in.NetEdgeOK) && in.Confidence >= headsUpFloor:
		return HeadsUp
	case !in.EntryConfirmed || !in.NetEdgeOK:
		return None
	case in.Confidence >= highConvictionFloor && !in.RugCapApplied && !in.YoungAndRisky:
		return HighConviction
	case in.Confidence >= float64(in.Threshold):
		return Actionable
	case in.Confidence >= headsUpFloor:
		return HeadsUp
	default:
		return None
	}
}
