package models

import "strings"

// TimesheetSubjectPrefix precedes the week range in every summary email subject.
const TimesheetSubjectPrefix = "Weekly timesheet summary for "

type EmailThreadSummary struct {
	ID       string // Gmail thread ID
	Subject  string // Subject of the first message
	HTMLBody string // First text/html part; empty when the thread has none
}

// HasHTML reports whether the thread carries a usable HTML body.
func (t EmailThreadSummary) HasHTML() bool {
	return t.HTMLBody != ""
}

// WeekRangeText strips the summary prefix from the subject, leaving the
// textual week range (e.g. "Apr 11 - 17").
func (t EmailThreadSummary) WeekRangeText() string {
	return strings.TrimSpace(strings.TrimPrefix(t.Subject, TimesheetSubjectPrefix))
}
