// Package invoice derives the identity of the next invoice from the tabs that
// already exist in the invoicing spreadsheet.
//
// Invoice numbers are never stored: every run re-reads the tab titles, takes
// the highest "Invoice #N" suffix and adds one.
package invoice

import (
	"strconv"
	"strings"

	"invoicer/internal/errs"
	"invoicer/pkg/models"
)

// Allocation is the result of allocating the next invoice.
type Allocation struct {
	// Identity is the new invoice.
	Identity models.InvoiceIdentity

	// Source is the existing invoice tab with the highest number; the new tab
	// is duplicated from it.
	Source models.Tab
}

// NumberFromTitle extracts the numeric suffix of an invoice tab title. Text
// after the last '#' is cut at the first space or '(' so "Invoice #10 (1)"
// yields 10. Anything non-numeric yields 0.
func NumberFromTitle(title string) int {
	idx := strings.LastIndex(title, "#")
	if idx < 0 {
		return 0
	}

	fields := strings.Fields(title[idx+1:])
	if len(fields) == 0 {
		return 0
	}
	numberPart, _, _ := strings.Cut(fields[0], "(")

	n, err := strconv.Atoi(strings.TrimSpace(numberPart))
	if err != nil {
		return 0
	}
	return n
}

// IsInvoiceTab reports whether title names an invoice tab.
func IsInvoiceTab(title string) bool {
	return strings.HasPrefix(title, models.InvoiceTabPrefix)
}

// Allocate picks the invoice tab with the highest number and returns the next
// identity. It fails with errs.ErrMissingData when no tab carries the invoice
// prefix.
func Allocate(tabs []models.Tab) (Allocation, error) {
	const op = "Allocate"

	var (
		source  models.Tab
		highest int
		found   bool
	)
	for _, tab := range tabs {
		if !IsInvoiceTab(tab.Title) {
			continue
		}
		n := NumberFromTitle(tab.Title)
		if !found || n > highest {
			source, highest, found = tab, n, true
		}
	}

	if !found {
		return Allocation{}, errs.MissingData(op, "no tab titled \""+models.InvoiceTabPrefix+"...\" found")
	}

	return Allocation{
		Identity: models.InvoiceIdentity{Number: highest + 1},
		Source:   source,
	}, nil
}

// NextNumber is Allocate reduced to tab titles.
func NextNumber(titles []string) (int, error) {
	tabs := make([]models.Tab, len(titles))
	for i, title := range titles {
		tabs[i] = models.Tab{Title: title}
	}
	alloc, err := Allocate(tabs)
	if err != nil {
		return 0, err
	}
	return alloc.Identity.Number, nil
}

// Latest returns the highest-numbered invoice title among names, which may be
// tab titles or folder names. It reports false when none is an invoice.
func Latest(names []string) (string, bool) {
	var (
		latest  string
		highest int
		found   bool
	)
	for _, name := range names {
		if !IsInvoiceTab(name) {
			continue
		}
		if n := NumberFromTitle(name); !found || n > highest {
			latest, highest, found = name, n, true
		}
	}
	return latest, found
}
