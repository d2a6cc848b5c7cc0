package analytics

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory is returned by the forecaster when fewer than two monthly points exist
var ErrInsufficientHistory = errors.New("insufficient history to forecast")

// ConfigurationError rejects engine settings before any computation starts
type ConfigurationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
