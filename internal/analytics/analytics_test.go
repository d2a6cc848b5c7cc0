package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(category string, year int, month time.Month, day int, amount float64) TransactionRecord {
	return TransactionRecord{
		Date:     time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Category: category,
		Amount:   amount,
	}
}

// monthlySeries builds a contiguous series starting at start with one transaction per month
func monthlySeries(start Period, totals ...float64) []MonthlyPoint {
	series := make([]MonthlyPoint, 0, len(totals))
	for i, t := range totals {
		series = append(series, MonthlyPoint{
			Period:  start.AddMonths(i),
			Total:   t,
			Count:   1,
			Average: t,
		})
	}
	return series
}

// TestPeriod tests Period ordering and encoding
func TestPeriod(t *testing.T) {
	t.Run("index round trip", func(t *testing.T) {
		p := Period{Year: 2024, Month: time.March}
		assert.Equal(t, p, PeriodFromIndex(p.Index()))
	})

	t.Run("add months across years", func(t *testing.T) {
		dec := Period{Year: 2023, Month: time.December}
		assert.Equal(t, Period{Year: 2024, Month: time.January}, dec.AddMonths(1))
		assert.Equal(t, Period{Year: 2023, Month: time.November}, dec.AddMonths(-1))
		assert.Equal(t, Period{Year: 2025, Month: time.December}, dec.AddMonths(24))
	})

	t.Run("ordering", func(t *testing.T) {
		a := Period{Year: 2023, Month: time.December}
		b := Period{Year: 2024, Month: time.January}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(Period{Year: 2024, Month: time.March})
		require.NoError(t, err)
		assert.Equal(t, `"2024-03"`, string(data))

		var p Period
		require.NoError(t, json.Unmarshal([]byte(`"2023-11"`), &p))
		assert.Equal(t, Period{Year: 2023, Month: time.November}, p)

		assert.Error(t, json.Unmarshal([]byte(`"2023-13"`), &p))
	})
}

// TestMetric tests availability markers and their JSON form
func TestMetric(t *testing.T) {
	tests := []struct {
		name     string
		metric   Metric
		json     string
		display  string
		hasValue bool
	}{
		{"known", Known(0.5), `{"status":"ok","value":0.5}`, "0.5000", true},
		{"known zero", Known(0), `{"status":"ok","value":0}`, "0.0000", true},
		{"insufficient", InsufficientData(), `{"status":"insufficient_data"}`, "insufficient data", false},
		{"not applicable", NotApplicable(), `{"status":"not_applicable"}`, "N/A", false},
		{"infinite", Known(math.Inf(1)), `{"status":"not_applicable"}`, "N/A", false},
		{"nan", Known(math.NaN()), `{"status":"not_applicable"}`, "N/A", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.metric)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))
			assert.Equal(t, tt.display, tt.metric.String())
			assert.Equal(t, tt.hasValue, tt.metric.Available())

			var decoded Metric
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.metric, decoded)
		})
	}
}

// TestRiskLevel tests ordering and text encoding of risk levels
func TestRiskLevel(t *testing.T) {
	assert.True(t, RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskCritical)
	assert.Equal(t, "Critical", RiskCritical.String())
	assert.Equal(t, "Unknown", RiskLevel(9).String())

	data, err := json.Marshal(RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, `"High"`, string(data))

	var level RiskLevel
	require.NoError(t, json.Unmarshal([]byte(`"Medium"`), &level))
	assert.Equal(t, RiskMedium, level)
	assert.Error(t, json.Unmarshal([]byte(`"Severe"`), &level))
}

// TestConfigValidate tests rejection of out-of-range settings
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, "", false},
		{"horizon at max", func(c *Config) { c.Horizon = 24 }, "", false},
		{"horizon zero", func(c *Config) { c.Horizon = 0 }, "horizon", true},
		{"horizon too large", func(c *Config) { c.Horizon = 25 }, "horizon", true},
		{"negative confidence", func(c *Config) { c.ConfidenceLevel = -0.1 }, "confidence_level", true},
		{"confidence one", func(c *Config) { c.ConfidenceLevel = 1 }, "confidence_level", true},
		{"confidence NaN", func(c *Config) { c.ConfidenceLevel = math.NaN() }, "confidence_level", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

// TestNormalize tests row validation and skip accounting
func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	rows := []RawRow{
		{"Date": "2024-01-15", "Expense Head": "Rent", "Amount": "1,200.50", "Vendor": "Landlord"},
		{"Date": "2024-01-20", "Expense Head": "Travel", "Amount": "$300"},
		{"Date": "2024-01-21", "Expense Head": "Travel", "Amount": -5.0},
		{"Date": "2024-01-22", "Expense Head": "Travel", "Amount": "abc"},
		{"Date": "not a date", "Expense Head": "Travel", "Amount": 10.0},
		{"Expense Head": "Travel", "Amount": 10.0},
		{"Date": 45292.0, "Expense Head": "Office", "Amount": 42},
		{"Date": time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), "Amount": 7.5},
		{"Date": "2024-02-04", "Expense Head": "Office", "Amount": "NaN"},
		{"Date": "2024-02-05", "Expense Head": "Office", "Amount": "(100)"},
		{"date": "03/15/2024", "category": "Office", "sub_category": "Paper", "amount": "€12.00", "Unknown": "x"},
		{"Date": "2024-02-06", "Expense Head": "Office"},
	}

	result := n.Normalize(rows)

	assert.Equal(t, len(rows), result.TotalRows)
	require.Len(t, result.Records, 5)
	assert.Equal(t, []SkippedRow{
		{Index: 2, Reason: ReasonNegativeAmount},
		{Index: 3, Reason: ReasonInvalidAmount},
		{Index: 4, Reason: ReasonInvalidDate},
		{Index: 5, Reason: ReasonMissingDate},
		{Index: 8, Reason: ReasonNonFiniteAmount},
		{Index: 9, Reason: ReasonNegativeAmount},
		{Index: 11, Reason: ReasonMissingAmount},
	}, result.Skipped)

	rent := result.Records[0]
	assert.Equal(t, "Rent", rent.Category)
	assert.Equal(t, 1200.50, rent.Amount)
	assert.Equal(t, "Landlord", rent.Vendor)

	assert.Equal(t, 300.0, result.Records[1].Amount)

	office := result.Records[2]
	assert.Equal(t, 2024, office.Date.Year())
	assert.Equal(t, time.January, office.Date.Month())
	assert.Equal(t, 1, office.Date.Day())
	assert.Equal(t, 42.0, office.Amount)

	assert.Equal(t, UncategorizedCategory, result.Records[3].Category)

	aliased := result.Records[4]
	assert.Equal(t, "Office", aliased.Category)
	assert.Equal(t, "Paper", aliased.SubCategory)
	assert.Equal(t, 12.0, aliased.Amount)
	assert.Equal(t, time.March, aliased.Date.Month())

	summary := result.Summary()
	assert.Equal(t, 12, summary.TotalRows)
	assert.Equal(t, 5, summary.AcceptedRows)
	assert.Equal(t, 7, summary.SkippedRows)

	for _, rec := range result.Records {
		assert.True(t, rec.IsValid())
	}
}

// TestNormalizeDefaultCategory tests that the sheet name fills missing expense heads
func TestNormalizeDefaultCategory(t *testing.T) {
	n := NewNormalizer()
	n.DefaultCategory = "Utilities"

	rec, err := n.NormalizeRow(RawRow{"Date": "2024-05-01", "Amount": 80})
	require.NoError(t, err)
	assert.Equal(t, "Utilities", rec.Category)

	rec, err = n.NormalizeRow(RawRow{"Date": "2024-05-01", "Amount": 80, "Expense Head": "Power"})
	require.NoError(t, err)
	assert.Equal(t, "Power", rec.Category)

	_, err = n.NormalizeRow(RawRow{"Date": "2024-05-01", "Amount": -1})
	assert.Error(t, err)
}

// TestNormalizeRejectsImplausibleValues tests bare years as dates and amounts past MaxAmount
func TestNormalizeRejectsImplausibleValues(t *testing.T) {
	n := NewNormalizer()

	_, err := n.NormalizeRow(RawRow{"Date": "2024", "Expense Head": "Rent", "Amount": 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ReasonInvalidDate)

	rec, err := n.NormalizeRow(RawRow{"Date": "45292", "Expense Head": "Rent", "Amount": MaxAmount})
	require.NoError(t, err)
	assert.Equal(t, time.January, rec.Date.Month())
	assert.Equal(t, 2024, rec.Date.Year())

	result := n.Normalize([]RawRow{
		{"Date": "2024-01-05", "Expense Head": "Rent", "Amount": 1e308},
		{"Date": "2024-01-06", "Expense Head": "Rent", "Amount": "1e16"},
	})
	assert.Empty(t, result.Records)
	assert.Equal(t, []SkippedRow{
		{Index: 0, Reason: ReasonAmountTooLarge},
		{Index: 1, Reason: ReasonAmountTooLarge},
	}, result.Skipped)
}

// TestParseDate tests the accepted date representations
func TestParseDate(t *testing.T) {
	n := NewNormalizer()
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input interface{}
		ok    bool
	}{
		{"iso", "2024-03-05", true},
		{"iso with spaces", "  2024-03-05 ", true},
		{"us slash", "03/05/2024", true},
		{"day first dashes", "05-03-2024", true},
		{"long month", "March 5, 2024", true},
		{"excel serial float", 45356.0, true},
		{"excel serial int", 45356, true},
		{"excel serial text", "45356", true},
		{"year as text", "2024", false},
		{"small number as text", "12", false},
		{"empty", "", false},
		{"zero serial", 0.0, false},
		{"bool", true, false},
		{"garbage", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.ParseDate(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want.Year(), got.Year())
			assert.Equal(t, want.Month(), got.Month())
			assert.Equal(t, want.Day(), got.Day())
		})
	}
}

// TestAggregateMonthly tests grouping, ordering and gap filling
func TestAggregateMonthly(t *testing.T) {
	records := []TransactionRecord{
		record("Rent", 2024, time.March, 3, 50),
		record("Rent", 2024, time.January, 10, 100),
		record("Rent", 2024, time.January, 20, 300),
		record("Rent", 2023, time.December, 31, 25),
	}

	t.Run("no gap filling", func(t *testing.T) {
		series := AggregateMonthly(records, false)
		require.Len(t, series, 3)

		assert.Equal(t, Period{Year: 2023, Month: time.December}, series[0].Period)
		assert.Equal(t, Period{Year: 2024, Month: time.January}, series[1].Period)
		assert.Equal(t, Period{Year: 2024, Month: time.March}, series[2].Period)

		assert.Equal(t, 400.0, series[1].Total)
		assert.Equal(t, 2, series[1].Count)
		assert.Equal(t, 200.0, series[1].Average)

		for i := 1; i < len(series); i++ {
			assert.True(t, series[i-1].Period.Before(series[i].Period), "periods strictly ascending")
		}
	})

	t.Run("gap filling", func(t *testing.T) {
		series := AggregateMonthly(records, true)
		require.Len(t, series, 4)

		gap := series[2]
		assert.Equal(t, Period{Year: 2024, Month: time.February}, gap.Period)
		assert.Equal(t, 0.0, gap.Total)
		assert.Equal(t, 0, gap.Count)
		assert.Equal(t, 0.0, gap.Average)

		for i := 1; i < len(series); i++ {
			assert.Equal(t, series[i-1].Period.Index()+1, series[i].Period.Index(), "no missing months")
		}
	})

	t.Run("mass preserved", func(t *testing.T) {
		for _, fill := range []bool{false, true} {
			var sum float64
			for _, p := range AggregateMonthly(records, fill) {
				sum += p.Total
			}
			assert.InDelta(t, TotalAmount(records), sum, 1e-9)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		series := AggregateMonthly(nil, true)
		assert.NotNil(t, series)
		assert.Empty(t, series)
	})
}

// TestBreakdownBySubCategory tests sub-category totals and shares
func TestBreakdownBySubCategory(t *testing.T) {
	records := []TransactionRecord{
		{Date: time.Now(), Category: "Office", SubCategory: "Paper", Amount: 30},
		{Date: time.Now(), Category: "Office", SubCategory: "Ink", Amount: 60},
		{Date: time.Now(), Category: "Office", SubCategory: "Paper", Amount: 10},
	}

	shares := BreakdownBySubCategory(records)
	require.Len(t, shares, 2)
	assert.Equal(t, "Ink", shares[0].SubCategory)
	assert.InDelta(t, 0.6, shares[0].Share, 1e-9)
	assert.Equal(t, "Paper", shares[1].SubCategory)
	assert.Equal(t, 2, shares[1].Count)
	assert.InDelta(t, 40.0, shares[1].Total, 1e-9)
}

// TestGroupByCategory tests category grouping and ordering
func TestGroupByCategory(t *testing.T) {
	records := []TransactionRecord{
		record("Travel", 2024, time.January, 1, 1),
		record("Rent", 2024, time.January, 1, 2),
		record("Travel", 2024, time.February, 1, 3),
	}
	groups := GroupByCategory(records)
	assert.Equal(t, []string{"Rent", "Travel"}, SortedCategories(groups))
	assert.Len(t, groups["Travel"], 2)
}
