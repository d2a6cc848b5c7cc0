package exporter

import (
	"strconv"

	"expensecli/internal/analytics"
)

// formatFloat formats a value with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatMetric renders an available metric with 2 decimals and an
// unavailable one by its status label
func formatMetric(m analytics.Metric) string {
	if !m.Available() {
		return m.String()
	}
	return formatFloat(m.Value)
}

// formatRatio renders a ratio metric with 4 decimals
func formatRatio(m analytics.Metric) string {
	if !m.Available() {
		return m.String()
	}
	return strconv.FormatFloat(m.Value, 'f', 4, 64)
}

// formatPercent renders a ratio as a percentage
func formatPercent(m analytics.Metric) string {
	if !m.Available() {
		return m.String()
	}
	return strconv.FormatFloat(m.Value*100, 'f', 1, 64) + "%"
}
