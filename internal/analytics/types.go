package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// OverallCategory names the combined analysis across every category
const OverallCategory = "All categories"

// UncategorizedCategory is assigned to records without an expense head
const UncategorizedCategory = "Uncategorized"

// Period identifies a calendar month
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the calendar month containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// PeriodFromIndex is the inverse of Period.Index
func PeriodFromIndex(idx int) Period {
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return Period{Year: year, Month: time.Month(month + 1)}
}

// Index returns a monotonically increasing month number, suitable for ordering and distance
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// AddMonths returns the period n months after p
func (p Period) AddMonths(n int) Period {
	return PeriodFromIndex(p.Index() + n)
}

// Before reports whether p precedes o
func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod parses a YYYY-MM string
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// MarshalJSON encodes the period as "YYYY-MM"
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a "YYYY-MM" string
func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TransactionRecord is a single validated expense row
type TransactionRecord struct {
	Date          time.Time `json:"date"`
	Category      string    `json:"category"`
	SubCategory   string    `json:"sub_category,omitempty"`
	Amount        float64   `json:"amount"`
	Department    string    `json:"department,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Vendor        string    `json:"vendor,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// IsValid checks the record invariants
func (r TransactionRecord) IsValid() bool {
	return !r.Date.IsZero() && r.Amount >= 0 && !math.IsNaN(r.Amount) && !math.IsInf(r.Amount, 0)
}

// Period returns the calendar month the record falls in
func (r TransactionRecord) Period() Period {
	return PeriodOf(r.Date)
}

// MonthlyPoint aggregates one calendar month of transactions
type MonthlyPoint struct {
	Period  Period  `json:"period"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// MetricStatus tells whether a metric could be computed
type MetricStatus string

const (
	// StatusOK marks a computed value
	StatusOK MetricStatus = "ok"
	// StatusInsufficientData marks a metric that needs more history
	StatusInsufficientData MetricStatus = "insufficient_data"
	// StatusNotApplicable marks a metric undefined for the input, e.g. a ratio over a zero mean
	StatusNotApplicable MetricStatus = "not_applicable"
	// StatusInsufficientHistory marks a forecast that could not be produced
	StatusInsufficientHistory MetricStatus = "insufficient_history"
)

// Metric is a value that may be unavailable. Unavailable metrics carry no value
// so NaN or Inf never reaches a serializer.
type Metric struct {
	Value  float64
	Status MetricStatus
}

// Known wraps a computed value. NaN and Inf degrade to NotApplicable.
func Known(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotApplicable()
	}
	return Metric{Value: v, Status: StatusOK}
}

// InsufficientData is the marker for metrics lacking history
func InsufficientData() Metric {
	return Metric{Status: StatusInsufficientData}
}

// NotApplicable is the marker for undefined metrics
func NotApplicable() Metric {
	return Metric{Status: StatusNotApplicable}
}

// Available reports whether the metric holds a value
func (m Metric) Available() bool {
	return m.Status == StatusOK
}

// String renders the value or its status
func (m Metric) String() string {
	if !m.Available() {
		switch m.Status {
		case StatusNotApplicable:
			return "N/A"
		case "":
			return "unknown"
		default:
			return "insufficient data"
		}
	}
	return fmt.Sprintf("%.4f", m.Value)
}

type metricJSON struct {
	Status MetricStatus `json:"status"`
	Value  *float64     `json:"value,omitempty"`
}

// MarshalJSON emits {"status":"ok","value":v} or just the status
func (m Metric) MarshalJSON() ([]byte, error) {
	out := metricJSON{Status: m.Status}
	if out.Status == "" {
		out.Status = StatusInsufficientData
	}
	if m.Available() {
		v := m.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON
func (m *Metric) UnmarshalJSON(data []byte) error {
	var in metricJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Status = in.Status
	m.Value = 0
	if in.Value != nil {
		m.Value = *in.Value
	}
	return nil
}

// Trend is the ordinary least squares line through monthly totals, with x measured
// in months since the first period of the series
type Trend struct {
	Slope     float64      `json:"slope"`
	Intercept float64      `json:"intercept"`
	Status    MetricStatus `json:"status"`
}

// At evaluates the trend line at month offset x
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// Available reports whether the trend was fitted
func (t Trend) Available() bool {
	return t.Status == StatusOK
}

// SeriesStatistics holds descriptive metrics of a monthly series
type SeriesStatistics struct {
	Months                 int       `json:"months"`
	Total                  float64   `json:"total"`
	Mean                   Metric    `json:"mean"`
	StdDeviation           Metric    `json:"std_deviation"`
	CoefficientOfVariation Metric    `json:"coefficient_of_variation"`
	GrowthRate             Metric    `json:"growth_rate"`
	Trend                  Trend     `json:"trend"`
	PeakPeriod             *Period   `json:"peak_period,omitempty"`
	TroughPeriod           *Period   `json:"trough_period,omitempty"`
	MonthOverMonthDeltas   []float64 `json:"month_over_month_deltas"`
}

// SeasonalProfile maps calendar months to their ratio against the overall mean.
// Months never observed have no entry.
type SeasonalProfile struct {
	Ratios        map[time.Month]float64 `json:"ratios"`
	LowConfidence bool                   `json:"low_confidence"`
	Months        int                    `json:"months"`
	Years         int                    `json:"years"`
	Status        MetricStatus           `json:"status"`
}

// Ratio returns the ratio for a calendar month, if profiled
func (sp SeasonalProfile) Ratio(m time.Month) (float64, bool) {
	if sp.Status != StatusOK {
		return 0, false
	}
	r, ok := sp.Ratios[m]
	return r, ok
}

// ForecastPoint is one projected month
type ForecastPoint struct {
	Period          Period  `json:"period"`
	StepsAhead      int     `json:"steps_ahead"`
	TrendEstimate   float64 `json:"trend_estimate"`
	SeasonalRatio   float64 `json:"seasonal_ratio"`
	PointEstimate   float64 `json:"point_estimate"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	Margin          float64 `json:"margin"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// Forecast wraps the projected points with the parameters that produced them
type Forecast struct {
	Status          MetricStatus    `json:"status"`
	Horizon         int             `json:"horizon"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Z               float64         `json:"z"`
	ResidualStdDev  float64         `json:"residual_std_dev"`
	Points          []ForecastPoint `json:"points"`
}

// Available reports whether the forecast produced points
func (f Forecast) Available() bool {
	return f.Status == StatusOK && len(f.Points) > 0
}

// RiskLevel is an ordered risk bucket
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskLevelNames = [...]string{"Low", "Medium", "High", "Critical"}

// String returns the display name of the risk level
func (r RiskLevel) String() string {
	if r < RiskLow || r > RiskCritical {
		return "Unknown"
	}
	return riskLevelNames[r]
}

// MarshalText encodes the level by name
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name
func (r *RiskLevel) UnmarshalText(text []byte) error {
	for i, name := range riskLevelNames {
		if name == string(text) {
			*r = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", text)
}

// CategoryScore is the comparative score of one category
type CategoryScore struct {
	Category          string    `json:"category"`
	EfficiencyScore   float64   `json:"efficiency_score"`
	VolatilityScore   float64   `json:"volatility_score"`
	GrowthScore       float64   `json:"growth_score"`
	RiskLevel         RiskLevel `json:"risk_level"`
	VolatilityRisk    RiskLevel `json:"volatility_risk"`
	GrowthRisk        RiskLevel `json:"growth_risk"`
	MonitoringCadence string    `json:"monitoring_cadence"`
	Rank              int       `json:"rank"`
	Insufficient      bool      `json:"insufficient_data,omitempty"`
}

// Severity grades an insight
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight is a qualitative recommendation derived from thresholds
type Insight struct {
	Code     string   `json:"code"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SkippedRow records why an input row was dropped
type SkippedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ValidationSummary reports normalizer diagnostics
type ValidationSummary struct {
	TotalRows    int          `json:"total_rows"`
	AcceptedRows int          `json:"accepted_rows"`
	SkippedRows  int          `json:"skipped_rows"`
	Skipped      []SkippedRow `json:"skipped"`
}

// SubCategoryShare is one slice of a category breakdown
type SubCategoryShare struct {
	SubCategory string  `json:"sub_category"`
	Total       float64 `json:"total"`
	Count       int     `json:"count"`
	Share       float64 `json:"share"`
}

// Summary holds headline figures of an analysis
type Summary struct {
	TotalSpent        float64 `json:"total_spent"`
	Transactions      int     `json:"transactions"`
	AnalysisPeriod    int     `json:"analysis_period_months"`
	AverageMonthly    Metric  `json:"average_monthly"`
	RecommendedBudget Metric  `json:"recommended_budget"`
	ShareOfTotal      Metric  `json:"share_of_total"`
	HighestMonthShare Metric  `json:"highest_month_share"`
	LowestMonthShare  Metric  `json:"lowest_month_share"`
}

// CategoryAnalysis is the full pipeline output for one category
type CategoryAnalysis struct {
	Category   string             `json:"category"`
	Summary    Summary            `json:"summary"`
	Series     []MonthlyPoint     `json:"series"`
	Statistics SeriesStatistics   `json:"statistics"`
	Seasonal   SeasonalProfile    `json:"seasonal"`
	Forecast   Forecast           `json:"forecast"`
	Breakdown  []SubCategoryShare `json:"breakdown"`
}

// Report is the serializable result of one engine run
type Report struct {
	Config       Config             `json:"config"`
	Validation   ValidationSummary  `json:"validation"`
	Overall      CategoryAnalysis   `json:"overall"`
	OverallScore CategoryScore      `json:"overall_score"`
	Categories   []CategoryAnalysis `json:"categories"`
	Scores       []CategoryScore    `json:"scores"`
	Insights     []Insight          `json:"insights"`
}

// Category returns the analysis for a category name
func (r *Report) Category(name string) (CategoryAnalysis, bool) {
	if name == OverallCategory {
		return r.Overall, true
	}
	for _, c := range r.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryAnalysis{}, false
}

// Score returns the ranked score for a category name
func (r *Report) Score(name string) (CategoryScore, bool) {
	for _, s := range r.Scores {
		if s.Category == name {
			return s, true
		}
	}
	return CategoryScore{}, false
}
