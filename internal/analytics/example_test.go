package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Example_growthScenario analyzes three months of ten percent growth and forecasts a quarter ahead
func Example_growthScenario() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	engine, err := NewEngine(Config{Horizon: 3, ConfidenceLevel: 0.8}, logger)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		return
	}

	rows := []RawRow{
		{"Date": "2024-01-05", "Expense Head": "Rent", "Amount": 1000},
		{"Date": "2024-02-05", "Expense Head": "Rent", "Amount": 1100},
		{"Date": "2024-03-05", "Expense Head": "Rent", "Amount": 1210},
	}

	report, err := engine.Analyze(context.Background(), rows)
	if err != nil {
		fmt.Printf("Error analyzing: %v\n", err)
		return
	}

	rent, _ := report.Category("Rent")
	fmt.Printf("growth rate: %.4f\n", rent.Statistics.GrowthRate.Value)
	for _, p := range rent.Forecast.Points {
		fmt.Printf("%s estimate %.2f [%.2f, %.2f]\n", p.Period, p.PointEstimate, p.LowerBound, p.UpperBound)
	}

	score, _ := report.Score("Rent")
	fmt.Printf("efficiency %.1f risk %s\n", score.EfficiencyScore, score.RiskLevel)

	for _, in := range report.Insights {
		if in.Category == "Rent" {
			fmt.Println(in.Code)
		}
	}

	// Output:
	// growth rate: 0.0952
	// 2024-04 estimate 1313.33 [1308.10, 1318.57]
	// 2024-05 estimate 1418.33 [1410.93, 1425.73]
	// 2024-06 estimate 1523.33 [1514.27, 1532.40]
	// efficiency 73.1 risk Medium
	// stable_cost
	// predictable_spending
	// efficiency_good
	// monitor_biweekly
	// forecast_spike
	// concentration_critical
	// budget_recommendation
	// seasonal_learning
}
