package bands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clean(c float64) Inputs {
	return Inputs{
		Confidence:     c,
		EntryConfirmed: true,
		NetEdgeOK:      true,
		Threshold:      70,
	}
}

func TestClassify_DecisionTable(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Band
	}{
		{"dq gate above floor", func() Inputs { i := clean(75); i.DQForcedHeadsUp = true; return i }(), HeadsUp},
		{"dq gate below floor", func() Inputs { i := clean(50); i.DQForcedHeadsUp = true; return i }(), None},
		{"dq gate beats high conviction", func() Inputs { i := clean(95); i.DQForcedHeadsUp = true; return i }(), HeadsUp},
		{"entry fail downgrades", func() Inputs { i := clean(90); i.EntryConfirmed = false; return i }(), HeadsUp},
		{"edge fail downgrades", func() Inputs { i := clean(72); i.NetEdgeOK = false; return i }(), HeadsUp},
		{"entry fail below floor", func() Inputs { i := clean(55); i.EntryConfirmed = false; return i }(), None},
		{"high conviction", clean(90), HighConviction},
		{"rug cap blocks high conviction", func() Inputs { i := clean(90); i.RugCapApplied = true; return i }(), Actionable},
		{"young and risky blocks high conviction", func() Inputs { i := clean(88); i.YoungAndRisky = true; return i }(), Actionable},
		{"actionable at threshold", clean(70), Actionable},
		{"risk-off raises bar", func() Inputs { i := clean(75); i.Threshold = 80; return i }(), HeadsUp},
		{"risk-on lowers bar", func() Inputs { i := clean(65); i.Threshold = 60; return i }(), Actionable},
		{"heads up", clean(62), HeadsUp},
		{"below everything", clean(40), None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

// Every combination of flags and confidence maps to exactly one band: the
// table has no gaps.
func TestClassify_NoRuleGap(t *testing.T) {
	bools := []bool{false, true}
	for c := 0.0; c <= 100.0; c += 2.5 {
		for _, dq := range bools {
			for _, rug := range bools {
				for _, young := range bools {
					for _, entry := range bools {
						for _, edge := range bools {
							in := Inputs{
								Confidence:      c,
								DQForcedHeadsUp: dq,
								RugCapApplied:   rug,
								YoungAndRisky:   young,
								EntryConfirmed:  entry,
								NetEdgeOK:       edge,
								Threshold:       70,
							}
							got := Classify(in)
							assert.Contains(t, []Band{None, HeadsUp, Actionable, HighConviction}, got)
						}
					}
				}
			}
		}
	}
}

func TestBand_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "heads_up", HeadsUp.String())
	assert.Equal(t, "actionable", Actionable.String())
	assert.Equal(t, "high_conviction", HighConviction.String())
}
