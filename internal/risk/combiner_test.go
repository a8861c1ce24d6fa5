package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTiers = []Tier{TierLow, TierModerate, TierHighMonitoring, TierCrisis}

// The combiner is the safety chokepoint: every one of the 16 tier pairs
// must yield max(floor, model), and the floor's fixed explanation must be
// used whenever the floor holds.
func TestCombine_Exhaustive(t *testing.T) {
	for _, floor := range allTiers {
		for _, model := range allTiers {
			res := Combine(floor, model, "model rationale")

			require.Equal(t, Max(floor, model), res.Final,
				"floor=%s model=%s", floor.Label(), model.Label())

			if floor >= model {
				assert.Equal(t, SourceQuestionnaire, res.Source)
				assert.Equal(t, floorExplanation, res.Explanation)
			} else {
				assert.Equal(t, SourceModel, res.Source)
				assert.Equal(t, "model rationale", res.Explanation)
			}
		}
	}
}

func TestCombine_EmptyRationaleFallsBackToGeneric(t *testing.T) {
	res := Combine(TierLow, TierHighMonitoring, "")
	require.Equal(t, TierHighMonitoring, res.Final)
	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, genericExplanation, res.Explanation)
}

func TestCombine_ModelCannotLowerFloor(t *testing.T) {
	res := Combine(TierCrisis, TierLow, "patient appears calm")
	require.Equal(t, TierCrisis, res.Final)
	assert.Equal(t, SourceQuestionnaire, res.Source)
	assert.NotContains(t, res.Explanation, "calm")
}

func TestTrajectoryOf(t *testing.T) {
	tests := []struct {
		name     string
		previous Tier
		current  Tier
		want     Trajectory
	}{
		{"low to crisis worsens", TierLow, TierCrisis, TrajectoryWorsening},
		{"crisis to moderate improves", TierCrisis, TierModerate, TrajectoryImproving},
		{"moderate holds stable", TierModerate, TierModerate, TrajectoryStable},
		{"adjacent step up worsens", TierModerate, TierHighMonitoring, TrajectoryWorsening},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrajectoryOf(tt.previous, tt.current))
		})
	}
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, TierLow < TierModerate)
	assert.True(t, TierModerate < TierHighMonitoring)
	assert.True(t, TierHighMonitoring < TierCrisis)
	assert.True(t, TierCrisis.AtLeast(TierHighMonitoring))
	assert.Equal(t, TierCrisis, Max(TierModerate, TierCrisis))
	assert.Equal(t, TierCrisis, Max(TierCrisis, TierModerate))
}
