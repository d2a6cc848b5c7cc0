package services

import "errors"

// ErrSheetsDisabled is returned when a Google Sheets import is requested
// without a configured source
var ErrSheetsDisabled = errors.New("google sheets import is not configured")
