package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Recognized input field names
const (
	FieldDate          = "Date"
	FieldExpenseHead   = "Expense Head"
	FieldSubCategory   = "Sub-Category"
	FieldAmount        = "Amount"
	FieldDepartment    = "Department"
	FieldPaymentMethod = "Payment Method"
	FieldVendor        = "Vendor"
	FieldNotes         = "Notes"
)

// Skip reasons reported in SkippedRow
const (
	ReasonMissingDate     = "missing date"
	ReasonInvalidDate     = "unparseable date"
	ReasonMissingAmount   = "missing amount"
	ReasonInvalidAmount   = "non-numeric amount"
	ReasonNegativeAmount  = "negative amount"
	ReasonNonFiniteAmount = "non-finite amount"
	ReasonAmountTooLarge  = "amount too large"
)

// MaxAmount bounds a single transaction so monthly sums and squared deviations stay finite
const MaxAmount = 1e15

// Excel serial day numbers outside this range are not treated as dates
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
	// Numeric text below this is more likely a year or a count than a date
	minTextSerial = 10000 // 1927-05-18
)

// RawRow is one untyped input row keyed by column header
type RawRow map[string]interface{}

// DefaultDateFormats lists the layouts accepted for textual dates, tried in order
var DefaultDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2006-01",
}

// fieldAliases maps a folded header to its canonical field name
var fieldAliases = map[string]string{
	"date":          FieldDate,
	"expensehead":   FieldExpenseHead,
	"category":      FieldExpenseHead,
	"subcategory":   FieldSubCategory,
	"amount":        FieldAmount,
	"department":    FieldDepartment,
	"paymentmethod": FieldPaymentMethod,
	"vendor":        FieldVendor,
	"notes":         FieldNotes,
}

// Normalizer turns raw rows into typed transaction records
type Normalizer struct {
	// DateFormats are tried in order for string dates
	DateFormats []string
	// DefaultCategory applies to rows without an expense head, e.g. the sheet name
	DefaultCategory string
	// Location is used for layouts without a zone
	Location *time.Location
}

// NewNormalizer creates a normalizer with the default date formats
func NewNormalizer() *Normalizer {
	return &Normalizer{
		DateFormats: DefaultDateFormats,
		Location:    time.UTC,
	}
}

// NormalizeResult holds the accepted records and per-row diagnostics
type NormalizeResult struct {
	Records   []TransactionRecord
	Skipped   []SkippedRow
	TotalRows int
}

// Summary converts the result into the report's validation block
func (r NormalizeResult) Summary() ValidationSummary {
	skipped := r.Skipped
	if skipped == nil {
		skipped = []SkippedRow{}
	}
	return ValidationSummary{
		TotalRows:    r.TotalRows,
		AcceptedRows: len(r.Records),
		SkippedRows:  len(r.Skipped),
		Skipped:      skipped,
	}
}

// Normalize validates every row. A bad row is skipped and recorded; it never fails the batch.
func (n *Normalizer) Normalize(rows []RawRow) NormalizeResult {
	result := NormalizeResult{
		Records:   make([]TransactionRecord, 0, len(rows)),
		TotalRows: len(rows),
	}

	for i, row := range rows {
		rec, reason := n.normalizeRow(row)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedRow{Index: i, Reason: reason})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result
}

// NormalizeRow validates a single row, returning the skip reason on failure
func (n *Normalizer) NormalizeRow(row RawRow) (TransactionRecord, error) {
	rec, reason := n.normalizeRow(row)
	if reason != "" {
		return TransactionRecord{}, fmt.Errorf("row rejected: %s", reason)
	}
	return rec, nil
}

func (n *Normalizer) normalizeRow(row RawRow) (TransactionRecord, string) {
	fields := canonicalFields(row)

	rawDate, ok := fields[FieldDate]
	if !ok || isBlank(rawDate) {
		return TransactionRecord{}, ReasonMissingDate
	}
	date, err := n.ParseDate(rawDate)
	if err != nil {
		return TransactionRecord{}, ReasonInvalidDate
	}

	rawAmount, ok := fields[FieldAmount]
	if !ok || isBlank(rawAmount) {
		return TransactionRecord{}, ReasonMissingAmount
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return TransactionRecord{}, ReasonInvalidAmount
	}
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return TransactionRecord{}, ReasonNonFiniteAmount
	case amount < 0:
		return TransactionRecord{}, ReasonNegativeAmount
	case amount > MaxAmount:
		return TransactionRecord{}, ReasonAmountTooLarge
	}

	category := stringField(fields, FieldExpenseHead)
	if category == "" {
		category = strings.TrimSpace(n.DefaultCategory)
	}
	if category == "" {
		category = UncategorizedCategory
	}

	return TransactionRecord{
		Date:          date,
		Category:      category,
		SubCategory:   stringField(fields, FieldSubCategory),
		Amount:        amount,
		Department:    stringField(fields, FieldDepartment),
		PaymentMethod: stringField(fields, FieldPaymentMethod),
		Vendor:        stringField(fields, FieldVendor),
		Notes:         stringField(fields, FieldNotes),
	}, ""
}

// ParseDate accepts time values, Excel serial day numbers and the configured text layouts
func (n *Normalizer) ParseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("zero date")
		}
		return d, nil
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, fmt.Errorf("zero date")
		}
		return *d, nil
	case string:
		return n.parseDateString(d)
	}

	serial, err := toFloat(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
	return excelSerialToTime(serial)
}

func (n *Normalizer) parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	formats := n.DateFormats
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	for _, layout := range formats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	// Spreadsheet exports sometimes carry the raw serial as text
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < minTextSerial {
			return time.Time{}, fmt.Errorf("numeric date %q below serial range", s)
		}
		return excelSerialToTime(serial)
	}

	return time.Time{}, fmt.Errorf("date %q matches no accepted format", s)
}

func excelSerialToTime(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, fmt.Errorf("serial date %v out of range", serial)
	}
	return excelize.ExcelDateToTime(serial, false)
}

// ParseAmount converts numeric values and currency-formatted strings
func ParseAmount(v interface{}) (float64, error) {
	if s, ok := v.(string); ok {
		return parseAmountString(s)
	}
	return toFloat(v)
}

var amountReplacer = strings.NewReplacer(
	",", "", " ", "", "\u00a0", "",
	"$", "", "€", "", "£", "", "¥", "", "₹", "",
	"USD", "", "EUR", "", "GBP", "", "IQD", "",
)

func parseAmountString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = amountReplacer.Replace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	if negative {
		f = -f
	}
	return f, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// canonicalFields folds header names so "expense_head", "Expense Head" and "category" agree.
// Unknown columns are dropped.
func canonicalFields(row RawRow) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for key, value := range row {
		name, ok := fieldAliases[foldHeader(key)]
		if !ok {
			continue
		}
		// An exact header wins over an alias
		if _, seen := out[name]; seen && key != name {
			continue
		}
		out[name] = value
	}
	return out
}

// CanonicalField returns the recognized field name for a column header
func CanonicalField(header string) (string, bool) {
	name, ok := fieldAliases[foldHeader(header)]
	return name, ok
}

func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func stringField(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
