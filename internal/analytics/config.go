package analytics

import "math"

const (
	// DefaultHorizon is the number of months forecast when unspecified
	DefaultHorizon = 6
	// MinHorizon and MaxHorizon bound the forecast horizon
	MinHorizon = 1
	MaxHorizon = 24
	// DefaultConfidenceLevel is the two-sided coverage of forecast bounds
	DefaultConfidenceLevel = 0.8
)

// Config is the configuration surface consumed by the engine
type Config struct {
	Horizon         int     `json:"horizon" yaml:"horizon"`
	FillGaps        bool    `json:"fill_gaps" yaml:"fill_gaps"`
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Horizon:         DefaultHorizon,
		FillGaps:        false,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// Validate rejects out-of-range settings
func (c Config) Validate() error {
	if c.Horizon < MinHorizon || c.Horizon > MaxHorizon {
		return &ConfigurationError{
			Field:   "horizon",
			Message: "horizon must be between 1 and 24 months",
			Value:   c.Horizon,
		}
	}
	if math.IsNaN(c.ConfidenceLevel) {
		return &ConfigurationError{
			Field:   "confidence_level",
			Message: "confidence level must be a number",
			Value:   "NaN",
		}
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return &ConfigurationError{
			Field:   "confidence_level",
			Message: "confidence level must be strictly between 0 and 1",
			Value:   c.ConfidenceLevel,
		}
	}
	return nil
}
