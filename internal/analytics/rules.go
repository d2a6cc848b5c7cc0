package analytics

// Cutoff promotes a metric to Level once the value reaches Threshold
type Cutoff struct {
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Level     RiskLevel `json:"level" yaml:"level"`
}

// RiskTable buckets one metric into risk levels. Cutoffs are ascending.
type RiskTable struct {
	Metric  string   `json:"metric" yaml:"metric"`
	Cutoffs []Cutoff `json:"cutoffs" yaml:"cutoffs"`
}

// Bucket returns the highest level whose threshold the value reaches.
// A value equal to a cutoff takes the higher bucket.
func (t RiskTable) Bucket(v float64) RiskLevel {
	level := RiskLow
	for _, c := range t.Cutoffs {
		if v >= c.Threshold && c.Level > level {
			level = c.Level
		}
	}
	return level
}

// Thresholds collects every cutoff the scoring module depends on
type Thresholds struct {
	Volatility RiskTable `json:"volatility" yaml:"volatility"`
	Growth     RiskTable `json:"growth" yaml:"growth"`
	// EscalateAt: when both contributors reach this level the final risk is Critical
	EscalateAt RiskLevel `json:"escalate_at" yaml:"escalate_at"`
	// UnknownContributor is assumed for a metric that could not be computed
	UnknownContributor RiskLevel `json:"unknown_contributor" yaml:"unknown_contributor"`

	// VolatilityPenalty is the score lost per unit of coefficient of variation
	VolatilityPenalty float64 `json:"volatility_penalty" yaml:"volatility_penalty"`
	// GrowthCeiling is the monthly growth rate scored as zero
	GrowthCeiling float64 `json:"growth_ceiling" yaml:"growth_ceiling"`
	// NeutralScore substitutes for a component that could not be computed
	NeutralScore float64 `json:"neutral_score" yaml:"neutral_score"`

	// Cadence maps risk levels to a monitoring recommendation
	Cadence map[RiskLevel]string `json:"cadence" yaml:"cadence"`

	// BudgetBuffer multiplies the average month into a recommended budget
	BudgetBuffer float64 `json:"budget_buffer" yaml:"budget_buffer"`
	// SeasonalMinMonths and SeasonalMinCalendarMonths gate the seasonal narrative
	SeasonalMinMonths         int `json:"seasonal_min_months" yaml:"seasonal_min_months"`
	SeasonalMinCalendarMonths int `json:"seasonal_min_calendar_months" yaml:"seasonal_min_calendar_months"`
}

// DefaultThresholds returns the standard scoring cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{
		Volatility: RiskTable{
			Metric: "coefficient_of_variation",
			Cutoffs: []Cutoff{
				{Threshold: 0.15, Level: RiskMedium},
				{Threshold: 0.50, Level: RiskHigh},
				{Threshold: 1.00, Level: RiskCritical},
			},
		},
		Growth: RiskTable{
			Metric: "abs_growth_rate",
			Cutoffs: []Cutoff{
				{Threshold: 0.05, Level: RiskMedium},
				{Threshold: 0.10, Level: RiskHigh},
				{Threshold: 0.20, Level: RiskCritical},
			},
		},
		EscalateAt:         RiskHigh,
		UnknownContributor: RiskMedium,
		VolatilityPenalty:  80,
		GrowthCeiling:      0.20,
		NeutralScore:       50,
		Cadence: map[RiskLevel]string{
			RiskLow:      "monthly",
			RiskMedium:   "bi-weekly",
			RiskHigh:     "weekly",
			RiskCritical: "weekly",
		},
		BudgetBuffer:              1.10,
		SeasonalMinMonths:         6,
		SeasonalMinCalendarMonths: 3,
	}
}

// Fact names a per-category metric that insight rules can test
type Fact string

const (
	FactGrowthRate     Fact = "growth_rate"
	FactVolatility     Fact = "coefficient_of_variation"
	FactEfficiency     Fact = "efficiency_score"
	FactRisk           Fact = "risk_level"
	FactForecastChange Fact = "forecast_change"
	FactShare          Fact = "share_of_total"
	FactBudget         Fact = "recommended_budget"
)

// Comparator is how a rule tests its fact
type Comparator string

const (
	Above   Comparator = ">"
	AtLeast Comparator = ">="
	Below   Comparator = "<"
	AtMost  Comparator = "<="
	// Always matches any available value; used as the fallback of a group
	Always Comparator = "always"
	// Missing matches when the fact could not be computed
	Missing Comparator = "missing"
)

// Matches applies the comparator to a metric
func (c Comparator) Matches(m Metric, threshold float64) bool {
	if c == Missing {
		return !m.Available()
	}
	if !m.Available() {
		return false
	}
	switch c {
	case Above:
		return m.Value > threshold
	case AtLeast:
		return m.Value >= threshold
	case Below:
		return m.Value < threshold
	case AtMost:
		return m.Value <= threshold
	case Always:
		return true
	default:
		return false
	}
}

// InsightRule emits Message when Fact satisfies Comparator against Threshold.
// Within a Group only the first matching rule fires, in table order.
//
// Message may contain {category} and {value}; the value is Fact * Scale rendered with Format.
type InsightRule struct {
	Code       string     `json:"code" yaml:"code"`
	Group      string     `json:"group" yaml:"group"`
	Fact       Fact       `json:"fact" yaml:"fact"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Threshold  float64    `json:"threshold" yaml:"threshold"`
	Severity   Severity   `json:"severity" yaml:"severity"`
	Message    string     `json:"message" yaml:"message"`
	Scale      float64    `json:"scale,omitempty" yaml:"scale,omitempty"`
	Format     string     `json:"format,omitempty" yaml:"format,omitempty"`
}

// DefaultInsightRules returns the standard rule table
func DefaultInsightRules() []InsightRule {
	return []InsightRule{
		// Trend
		{Code: "insufficient_history", Group: "trend", Fact: FactGrowthRate, Comparator: Missing,
			Severity: SeverityInfo, Message: "{category} has too little history for trend analysis; collect more months of data"},
		{Code: "rising_cost", Group: "trend", Fact: FactGrowthRate, Comparator: Above, Threshold: 0.10,
			Severity: SeverityWarning, Scale: 100, Format: "%.1f%%",
			Message: "{category} spending is growing {value} per month; review cost controls"},
		{Code: "falling_cost", Group: "trend", Fact: FactGrowthRate, Comparator: Below, Threshold: -0.10,
			Severity: SeverityInfo, Scale: 100, Format: "%.1f%%",
			Message: "{category} spending is declining {value} per month"},
		{Code: "stable_cost", Group: "trend", Fact: FactGrowthRate, Comparator: Always,
			Severity: SeverityInfo, Message: "{category} spending is stable"},

		// Volatility
		{Code: "predictable_spending", Group: "volatility", Fact: FactVolatility, Comparator: Below, Threshold: 0.20,
			Severity: SeverityInfo, Format: "%.2f",
			Message: "{category} spending is predictable (CV {value}); forecasts are reliable for budgeting"},
		{Code: "variable_spending", Group: "volatility", Fact: FactVolatility, Comparator: Always,
			Severity: SeverityWarning, Format: "%.2f",
			Message: "{category} spending is variable (CV {value}); keep a contingency buffer"},

		// Efficiency
		{Code: "efficiency_excellent", Group: "efficiency", Fact: FactEfficiency, Comparator: AtLeast, Threshold: 80,
			Severity: SeverityInfo, Format: "%.0f",
			Message: "{category} cost efficiency is excellent ({value}/100)"},
		{Code: "efficiency_good", Group: "efficiency", Fact: FactEfficiency, Comparator: AtLeast, Threshold: 60,
			Severity: SeverityInfo, Format: "%.0f",
			Message: "{category} cost efficiency is good ({value}/100)"},
		{Code: "efficiency_low", Group: "efficiency", Fact: FactEfficiency, Comparator: Always,
			Severity: SeverityWarning, Format: "%.0f",
			Message: "{category} cost efficiency needs attention ({value}/100)"},

		// Monitoring
		{Code: "monitor_weekly", Group: "risk", Fact: FactRisk, Comparator: AtLeast, Threshold: float64(RiskHigh),
			Severity: SeverityCritical, Message: "{category} is high risk; monitor weekly"},
		{Code: "monitor_biweekly", Group: "risk", Fact: FactRisk, Comparator: AtLeast, Threshold: float64(RiskMedium),
			Severity: SeverityWarning, Message: "{category} is medium risk; monitor bi-weekly"},
		{Code: "monitor_monthly", Group: "risk", Fact: FactRisk, Comparator: Always,
			Severity: SeverityInfo, Message: "{category} is low risk; monthly monitoring is sufficient"},

		// Forecast
		{Code: "forecast_spike", Group: "forecast", Fact: FactForecastChange, Comparator: Above, Threshold: 0.20,
			Severity: SeverityWarning, Scale: 100, Format: "%.1f%%",
			Message: "{category} is forecast to end the horizon {value} above the latest month"},
		{Code: "forecast_drop", Group: "forecast", Fact: FactForecastChange, Comparator: Below, Threshold: -0.20,
			Severity: SeverityInfo, Scale: -100, Format: "%.1f%%",
			Message: "{category} is forecast to end the horizon {value} below the latest month"},

		// Concentration
		{Code: "concentration_critical", Group: "concentration", Fact: FactShare, Comparator: Above, Threshold: 0.40,
			Severity: SeverityCritical, Scale: 100, Format: "%.1f%%",
			Message: "{category} accounts for {value} of total spend; critical focus area"},
		{Code: "concentration_review", Group: "concentration", Fact: FactShare, Comparator: Above, Threshold: 0.25,
			Severity: SeverityWarning, Scale: 100, Format: "%.1f%%",
			Message: "{category} accounts for {value} of total spend; schedule a strategic review"},

		// Budget
		{Code: "budget_recommendation", Group: "budget", Fact: FactBudget, Comparator: Above, Threshold: 0,
			Severity: SeverityInfo, Format: "%.2f",
			Message: "Recommended monthly budget for {category}: {value}"},
	}
}
