package sheets

import (
	"fmt"
	"strings"
)

// Field names an invoice template cell the workflow can fill in.
type Field string

const (
	FieldInvoiceNo      Field = "invoice_no"
	FieldSubmissionDate Field = "submission_date"
	FieldWeekOneDate    Field = "week_one_date"
	FieldWeekTwoDate    Field = "week_two_date"
	FieldWeekOneHours   Field = "week_one_hours"
	FieldWeekTwoHours   Field = "week_two_hours"
)

// InvoiceFields is a sparse update of an invoice tab. Nil fields leave the
// existing cell contents untouched.
type InvoiceFields struct {
	InvoiceNo      *int
	SubmissionDate *string // MM/DD/YYYY
	WeekOneDate    *string
	WeekTwoDate    *string
	WeekOneHours   *float64
	WeekTwoHours   *float64
}

// CellUpdate is one range/value pair of an update plan. Range is relative to
// the invoice tab (e.g. "F12:G12").
type CellUpdate struct {
	Field Field
	Range string
	Value interface{}
}

// UpdatePlan is the ordered list of cells to write.
type UpdatePlan []CellUpdate

type fieldBinding struct {
	field  Field
	cells  string
	format func(InvoiceFields) (interface{}, bool)
}

// fieldTable maps each field to its cell range in the invoice template.
var fieldTable = []fieldBinding{
	{FieldInvoiceNo, "F12:G12", func(f InvoiceFields) (interface{}, bool) {
		if f.InvoiceNo == nil {
			return nil, false
		}
		return fmt.Sprintf("#%d", *f.InvoiceNo), true
	}},
	{FieldSubmissionDate, "B9:C9", func(f InvoiceFields) (interface{}, bool) {
		if f.SubmissionDate == nil {
			return nil, false
		}
		return fmt.Sprintf("Submitted on %s (GMT+8)", *f.SubmissionDate), true
	}},
	{FieldWeekOneDate, "B19:D19", stringField(func(f InvoiceFields) *string { return f.WeekOneDate })},
	{FieldWeekTwoDate, "B20:D20", stringField(func(f InvoiceFields) *string { return f.WeekTwoDate })},
	{FieldWeekOneHours, "E19", floatField(func(f InvoiceFields) *float64 { return f.WeekOneHours })},
	{FieldWeekTwoHours, "E20", floatField(func(f InvoiceFields) *float64 { return f.WeekTwoHours })},
}

func stringField(get func(InvoiceFields) *string) func(InvoiceFields) (interface{}, bool) {
	return func(f InvoiceFields) (interface{}, bool) {
		if v := get(f); v != nil {
			return *v, true
		}
		return nil, false
	}
}

func floatField(get func(InvoiceFields) *float64) func(InvoiceFields) (interface{}, bool) {
	return func(f InvoiceFields) (interface{}, bool) {
		if v := get(f); v != nil {
			return *v, true
		}
		return nil, false
	}
}

// Compose builds the update plan for fields, in template order. Only set
// fields produce entries.
func Compose(fields InvoiceFields) UpdatePlan {
	var plan UpdatePlan
	for _, binding := range fieldTable {
		value, ok := binding.format(fields)
		if !ok {
			continue
		}
		plan = append(plan, CellUpdate{
			Field: binding.field,
			Range: binding.cells,
			Value: value,
		})
	}
	return plan
}

// CellRange returns the template range of field.
func CellRange(field Field) (string, bool) {
	for _, binding := range fieldTable {
		if binding.field == field {
			return binding.cells, true
		}
	}
	return "", false
}

// qualifiedRange prefixes cells with the quoted tab title, e.g.
// 'Invoice #6'!F12:G12. Single quotes inside the title are doubled.
func qualifiedRange(tabTitle, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(tabTitle, "'", "''"), cells)
}
