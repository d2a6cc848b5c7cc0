package analytics

import (
	"sort"
)

// AggregateMonthly groups records by calendar month. Output is ascending by period.
// With fillGaps, months between the first and last observation that had no
// transactions appear as zero points with Count 0.
func AggregateMonthly(records []TransactionRecord, fillGaps bool) []MonthlyPoint {
	if len(records) == 0 {
		return []MonthlyPoint{}
	}

	byMonth := make(map[int]*MonthlyPoint)
	for _, rec := range records {
		p := rec.Period()
		mp, ok := byMonth[p.Index()]
		if !ok {
			mp = &MonthlyPoint{Period: p}
			byMonth[p.Index()] = mp
		}
		mp.Total += rec.Amount
		mp.Count++
	}

	keys := make([]int, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if fillGaps {
		first, last := keys[0], keys[len(keys)-1]
		series := make([]MonthlyPoint, 0, last-first+1)
		for idx := first; idx <= last; idx++ {
			if mp, ok := byMonth[idx]; ok {
				series = append(series, finalizePoint(*mp))
				continue
			}
			series = append(series, MonthlyPoint{Period: PeriodFromIndex(idx)})
		}
		return series
	}

	series := make([]MonthlyPoint, 0, len(keys))
	for _, k := range keys {
		series = append(series, finalizePoint(*byMonth[k]))
	}
	return series
}

func finalizePoint(mp MonthlyPoint) MonthlyPoint {
	if mp.Count > 0 {
		mp.Average = mp.Total / float64(mp.Count)
	}
	return mp
}

// GroupByCategory splits records by category, preserving input order within each group
func GroupByCategory(records []TransactionRecord) map[string][]TransactionRecord {
	groups := make(map[string][]TransactionRecord)
	for _, rec := range records {
		groups[rec.Category] = append(groups[rec.Category], rec)
	}
	return groups
}

// SortedCategories returns the group names in ascending order
func SortedCategories(groups map[string][]TransactionRecord) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BreakdownBySubCategory totals records per sub-category, largest first.
// Records without a sub-category are reported under the empty name.
func BreakdownBySubCategory(records []TransactionRecord) []SubCategoryShare {
	totals := make(map[string]*SubCategoryShare)
	var grand float64
	for _, rec := range records {
		s, ok := totals[rec.SubCategory]
		if !ok {
			s = &SubCategoryShare{SubCategory: rec.SubCategory}
			totals[rec.SubCategory] = s
		}
		s.Total += rec.Amount
		s.Count++
		grand += rec.Amount
	}

	out := make([]SubCategoryShare, 0, len(totals))
	for _, s := range totals {
		if grand > 0 {
			s.Share = s.Total / grand
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].SubCategory < out[j].SubCategory
	})
	return out
}

// TotalAmount sums record amounts
func TotalAmount(records []TransactionRecord) float64 {
	var sum float64
	for _, rec := range records {
		sum += rec.Amount
	}
	return sum
}
