package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DateGroup holds the records sharing one date, in list order.
type DateGroup struct {
	Date     string
	Records  []*Record
	Subtotal decimal.Decimal
}

// GroupedView is the read-only projection of a record list: records
// partitioned by date plus the total over the whole list.
type GroupedView struct {
	Groups []DateGroup
	Total  decimal.Decimal
	Count  int
}

// TotalDisplay renders the total with two decimals.
func (v GroupedView) TotalDisplay() string {
	return FormatAmount(v.Total)
}

// Group returns the group for date, if any.
func (v GroupedView) Group(date string) (DateGroup, bool) {
	for _, g := range v.Groups {
		if g.Date == date {
			return g, true
		}
	}
	return DateGroup{}, false
}

// Dates returns the group keys in display order.
func (v GroupedView) Dates() []string {
	dates := make([]string, len(v.Groups))
	for i, g := range v.Groups {
		dates[i] = g.Date
	}
	return dates
}

// GroupByDate partitions records by date. Groups appear in order of first
// occurrence and keep the relative order of their records; for a list sorted
// with SortByDateDesc this yields newest date first.
func GroupByDate(records []*Record) GroupedView {
	view := GroupedView{
		Total: decimal.Zero,
		Count: len(records),
	}

	index := make(map[string]int)
	for _, r := range records {
		view.Total = view.Total.Add(r.Value)

		i, ok := index[r.Date]
		if !ok {
			i = len(view.Groups)
			index[r.Date] = i
			view.Groups = append(view.Groups, DateGroup{Date: r.Date, Subtotal: decimal.Zero})
		}

		g := &view.Groups[i]
		g.Records = append(g.Records, r)
		g.Subtotal = g.Subtotal.Add(r.Value)
	}

	return view
}

// SortByDateDesc orders records newest date first. Dates compare as strings,
// which is chronological for YYYY-MM-DD. Records sharing a date keep their
// relative order.
func SortByDateDesc(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
}
