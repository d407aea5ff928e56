package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage format of Record.Date.
const DateLayout = "2006-01-02"

// LabelLayout is the display format of a date group header.
const LabelLayout = "02/01/2006"

// Record is one expense entry owned by a single identity.
type Record struct {
	CreatedAt   time.Time
	ID          string
	Description string
	Date        string
	Owner       string
	Value       decimal.Decimal
}

// RecordPatch holds the fields an edit may change. Date and owner are immutable.
type RecordPatch struct {
	Description string
	Value       decimal.Decimal
}

// Apply writes the patch onto the record.
func (r *Record) Apply(p RecordPatch) {
	r.Description = p.Description
	r.Value = p.Value
}

// Clone returns a copy that shares no state with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ValueDisplay renders the value with two decimals.
func (r *Record) ValueDisplay() string {
	return FormatAmount(r.Value)
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// DateLabel renders a YYYY-MM-DD date as DD/MM/YYYY. Unparseable input is
// returned unchanged.
func DateLabel(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(LabelLayout)
}
