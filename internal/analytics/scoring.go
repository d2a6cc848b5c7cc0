package analytics

import (
	"math"
	"sort"
)

// ScoreInput carries what the scoring module needs for one category
type ScoreInput struct {
	Category   string
	Statistics SeriesStatistics
}

// ScoreCategory computes the efficiency score and risk level of one category.
// Rank is left at zero; see ScoreCategories.
func ScoreCategory(in ScoreInput, th Thresholds) CategoryScore {
	score := CategoryScore{Category: in.Category}

	cv := in.Statistics.CoefficientOfVariation
	growth := in.Statistics.GrowthRate

	score.VolatilityScore = th.NeutralScore
	score.VolatilityRisk = th.UnknownContributor
	if cv.Available() {
		score.VolatilityScore = clamp(100-cv.Value*th.VolatilityPenalty, 0, 100)
		score.VolatilityRisk = th.Volatility.Bucket(cv.Value)
	}

	score.GrowthScore = th.NeutralScore
	score.GrowthRisk = th.UnknownContributor
	if growth.Available() {
		score.GrowthScore = growthScore(growth.Value, th.GrowthCeiling)
		score.GrowthRisk = th.Growth.Bucket(math.Abs(growth.Value))
	}

	score.Insufficient = !cv.Available() || !growth.Available()
	score.EfficiencyScore = clamp((score.VolatilityScore+score.GrowthScore)/2, 0, 100)
	score.RiskLevel = combineRisk(score.VolatilityRisk, score.GrowthRisk, th.EscalateAt)
	score.MonitoringCadence = th.Cadence[score.RiskLevel]

	return score
}

// ScoreCategories scores and ranks categories. The result is ordered by rank:
// efficiency descending, then category name ascending.
func ScoreCategories(inputs []ScoreInput, th Thresholds) []CategoryScore {
	scores := make([]CategoryScore, 0, len(inputs))
	for _, in := range inputs {
		scores = append(scores, ScoreCategory(in, th))
	}
	RankScores(scores)
	return scores
}

// RankScores sorts scores in place and assigns 1-based ranks
func RankScores(scores []CategoryScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].EfficiencyScore != scores[j].EfficiencyScore {
			return scores[i].EfficiencyScore > scores[j].EfficiencyScore
		}
		return scores[i].Category < scores[j].Category
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

// growthScore is 100 for flat or shrinking spend, 0 at or beyond the ceiling, linear between
func growthScore(growth, ceiling float64) float64 {
	if growth <= 0 {
		return 100
	}
	if ceiling <= 0 || growth >= ceiling {
		return 0
	}
	return 100 * (1 - growth/ceiling)
}

func combineRisk(volatility, growth, escalateAt RiskLevel) RiskLevel {
	if volatility >= escalateAt && growth >= escalateAt {
		return RiskCritical
	}
	if volatility > growth {
		return volatility
	}
	return growth
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
