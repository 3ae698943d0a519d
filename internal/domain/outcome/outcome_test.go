package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  AttainmentLevel
	}{
		{100, LevelExcellent},
		{85, LevelExcellent},
		{84.99, LevelSatisfactory},
		{70, LevelSatisfactory},
		{69.9, LevelDeveloping},
		{50, LevelDeveloping},
		{49.99, LevelNotYet},
		{0, LevelNotYet},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "Classify(%v)", tt.score)
	}
	assert.Equal(t, "Not_Yet", LevelNotYet.String())
	assert.Equal(t, LevelSatisfactory, ParseAttainmentLevel("Satisfactory"))
}

func TestTierScopeMapping(t *testing.T) {
	assert.Equal(t, ScopeStudentCourse, TierCLO.Scope())
	assert.Equal(t, ScopeCourse, TierPLO.Scope())
	assert.Equal(t, ScopeProgram, TierILO.Scope())

	for _, tier := range []Tier{TierCLO, TierPLO, TierILO} {
		assert.Equal(t, tier, tier.Scope().Tier())
		assert.Equal(t, tier, ParseTier(tier.String()))
		assert.Equal(t, tier.Scope(), ParseScope(tier.Scope().String()))
	}
	assert.Equal(t, ScopeUnknown, ParseScope("galaxy"))
}

func TestMeanScore(t *testing.T) {
	_, _, ok := MeanScore(nil)
	assert.False(t, ok)

	mean, n, ok := MeanScore([]Evidence{{ScorePercent: 90}, {ScorePercent: 60}, {ScorePercent: 75}})
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 75.0, mean, 1e-9)
}

func TestWeightedMean(t *testing.T) {
	t.Run("weighted cascade example", func(t *testing.T) {
		mean, samples, ok := WeightedMean([]Contribution{
			{SourceID: "clo-a", Weight: 2, Percent: 80, SampleCount: 3, Attained: true},
			{SourceID: "clo-b", Weight: 1, Percent: 60, SampleCount: 1, Attained: true},
		})
		assert.True(t, ok)
		assert.InDelta(t, 73.333, mean, 0.001)
		assert.Equal(t, 4, samples)
	})

	t.Run("unattained sources are excluded not zeroed", func(t *testing.T) {
		mean, samples, ok := WeightedMean([]Contribution{
			{SourceID: "clo-a", Weight: 1, Percent: 90, SampleCount: 1, Attained: true},
			{SourceID: "clo-b", Weight: 5, Attained: false},
		})
		assert.True(t, ok)
		assert.InDelta(t, 90.0, mean, 1e-9)
		assert.Equal(t, 1, samples)
	})

	t.Run("nothing attained", func(t *testing.T) {
		_, _, ok := WeightedMean([]Contribution{{Weight: 1}})
		assert.False(t, ok)
	})
}
