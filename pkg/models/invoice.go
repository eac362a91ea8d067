package models

import "fmt"

// InvoiceTabPrefix starts the title of every invoice tab in the spreadsheet.
const InvoiceTabPrefix = "Invoice #"

type InvoiceIdentity struct {
	// Core identifier
	Number int // Positive, one above the highest existing tab suffix
}

// Title is the tab title, folder name and PDF base name of the invoice.
func (i InvoiceIdentity) Title() string {
	return fmt.Sprintf("%s%d", InvoiceTabPrefix, i.Number)
}

type Tab struct {
	ID    int64  // Sheet ID (the "gid" of the tab)
	Title string // Tab title as shown in the spreadsheet
}
