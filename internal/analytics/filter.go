package analytics

import (
	"strings"
	"time"
)

// RecordFilter narrows validated records before analysis or export. Zero
// fields do not filter. From and To are inclusive calendar days.
type RecordFilter struct {
	Categories []string
	MinAmount  *float64
	MaxAmount  *float64
	From       time.Time
	To         time.Time
}

// IsZero reports whether the filter keeps every record
func (f RecordFilter) IsZero() bool {
	return len(f.Categories) == 0 && f.MinAmount == nil && f.MaxAmount == nil && f.From.IsZero() && f.To.IsZero()
}

// Validate rejects inverted ranges
func (f RecordFilter) Validate() error {
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		return &ConfigurationError{Field: "min_amount", Message: "min_amount exceeds max_amount", Value: *f.MinAmount}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return &ConfigurationError{Field: "from", Message: "from is after to", Value: f.From.Format("2006-01-02")}
	}
	return nil
}

// Apply returns the matching records in input order
func (f RecordFilter) Apply(records []TransactionRecord) []TransactionRecord {
	if f.IsZero() {
		return records
	}

	categories := make(map[string]struct{}, len(f.Categories))
	for _, c := range f.Categories {
		categories[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	var toExclusive time.Time
	if !f.To.IsZero() {
		y, m, d := f.To.Date()
		toExclusive = time.Date(y, m, d+1, 0, 0, 0, 0, f.To.Location())
	}

	out := make([]TransactionRecord, 0, len(records))
	for _, rec := range records {
		if len(categories) > 0 {
			if _, ok := categories[strings.ToLower(rec.Category)]; !ok {
				continue
			}
		}
		if f.MinAmount != nil && rec.Amount < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && rec.Amount > *f.MaxAmount {
			continue
		}
		if !f.From.IsZero() && rec.Date.Before(f.From) {
			continue
		}
		if !toExclusive.IsZero() && !rec.Date.Before(toExclusive) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
