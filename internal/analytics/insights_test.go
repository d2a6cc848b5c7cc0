package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insightCodes(insights []Insight) []string {
	codes := make([]string, len(insights))
	for i, in := range insights {
		codes[i] = in.Code
	}
	return codes
}

func findInsight(insights []Insight, code string) (Insight, bool) {
	for _, in := range insights {
		if in.Code == code {
			return in, true
		}
	}
	return Insight{}, false
}

// TestComparator tests rule comparisons against available and missing facts
func TestComparator(t *testing.T) {
	assert.True(t, Above.Matches(Known(0.2), 0.1))
	assert.False(t, Above.Matches(Known(0.1), 0.1))
	assert.True(t, AtLeast.Matches(Known(0.1), 0.1))
	assert.True(t, Below.Matches(Known(-0.2), -0.1))
	assert.True(t, AtMost.Matches(Known(-0.1), -0.1))
	assert.True(t, Always.Matches(Known(0), 0))
	assert.False(t, Always.Matches(InsufficientData(), 0))
	assert.True(t, Missing.Matches(NotApplicable(), 0))
	assert.False(t, Missing.Matches(Known(1), 0))
	assert.False(t, Comparator("~").Matches(Known(1), 0))
}

// TestGenerateInsights tests rule groups, forecast and concentration rules
func TestGenerateInsights(t *testing.T) {
	th := DefaultThresholds()
	series := monthlySeries(jan2024, 100, 100, 100)

	base := InsightInput{
		Category:   "Travel",
		Series:     series,
		Statistics: statsWith(Known(0.1), Known(0.15)),
		Seasonal:   AnalyzeSeasonality(series),
		Forecast: Forecast{
			Status: StatusOK,
			Points: []ForecastPoint{{PointEstimate: 110}, {PointEstimate: 150}},
		},
		Score: &CategoryScore{EfficiencyScore: 85, RiskLevel: RiskHigh},
		Summary: Summary{
			ShareOfTotal:      Known(0.5),
			RecommendedBudget: Known(110),
		},
	}

	insights := GenerateInsights(base, DefaultInsightRules(), th)
	assert.Equal(t, []string{
		"rising_cost",
		"predictable_spending",
		"efficiency_excellent",
		"monitor_weekly",
		"forecast_spike",
		"concentration_critical",
		"budget_recommendation",
		"seasonal_learning",
	}, insightCodes(insights))

	rising, _ := findInsight(insights, "rising_cost")
	assert.Equal(t, SeverityWarning, rising.Severity)
	assert.Equal(t, "Travel spending is growing 15.0% per month; review cost controls", rising.Message)

	spike, _ := findInsight(insights, "forecast_spike")
	assert.Contains(t, spike.Message, "50.0%")

	budget, _ := findInsight(insights, "budget_recommendation")
	assert.Equal(t, "Recommended monthly budget for Travel: 110.00", budget.Message)

	for _, in := range insights {
		assert.Equal(t, "Travel", in.Category)
	}
}

// TestGenerateInsightsThresholds tests which rule of a group wins
func TestGenerateInsightsThresholds(t *testing.T) {
	th := DefaultThresholds()
	rules := DefaultInsightRules()

	tests := []struct {
		name    string
		growth  Metric
		share   Metric
		want    []string
		exclude []string
	}{
		{"falling", Known(-0.2), Known(0.1), []string{"falling_cost"}, []string{"concentration_review", "concentration_critical"}},
		{"stable", Known(0.05), Known(0.3), []string{"stable_cost", "concentration_review"}, []string{"rising_cost"}},
		{"no history", InsufficientData(), NotApplicable(), []string{"insufficient_history"}, []string{"stable_cost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := InsightInput{
				Category:   "Office",
				Statistics: statsWith(Known(0.3), tt.growth),
				Summary:    Summary{ShareOfTotal: tt.share},
			}
			codes := insightCodes(GenerateInsights(in, rules, th))
			for _, c := range tt.want {
				assert.Contains(t, codes, c)
			}
			for _, c := range tt.exclude {
				assert.NotContains(t, codes, c)
			}
		})
	}
}

// TestSeasonalInsight tests the peak and low month narrative
func TestSeasonalInsight(t *testing.T) {
	th := DefaultThresholds()
	series := monthlySeries(jan2024, 100, 300, 100, 100, 50, 100)

	in := InsightInput{
		Category:   "Utilities",
		Series:     series,
		Statistics: ComputeStatistics(series),
		Seasonal:   AnalyzeSeasonality(series),
	}
	insights := GenerateInsights(in, nil, th)
	require.Len(t, insights, 1)
	assert.Equal(t, "seasonal_pattern", insights[0].Code)
	assert.Contains(t, insights[0].Message, "peaks in February")
	assert.Contains(t, insights[0].Message, "lowest in May")
	assert.Contains(t, insights[0].Message, "low confidence")
}

// TestGenerateInsightsDeterministic checks identical input yields identical output
func TestGenerateInsightsDeterministic(t *testing.T) {
	series := monthlySeries(jan2024, 100, 140, 90, 180, 60, 200, 110)
	stats := ComputeStatistics(series)
	score := ScoreCategory(ScoreInput{Category: "Ops", Statistics: stats}, DefaultThresholds())
	in := InsightInput{
		Category:   "Ops",
		Series:     series,
		Statistics: stats,
		Seasonal:   AnalyzeSeasonality(series),
		Score:      &score,
	}

	first := GenerateInsights(in, DefaultInsightRules(), DefaultThresholds())
	second := GenerateInsights(in, DefaultInsightRules(), DefaultThresholds())
	assert.Equal(t, first, second)
}
