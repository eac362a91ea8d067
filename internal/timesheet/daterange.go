// Package timesheet turns the week ranges found in timesheet summary subjects
// into ordered, date-resolvable values.
//
// A week range has the shape "<Mon> <D> - [<Mon> ]<D>", for example
// "Apr 11 - 17" or "Apr 25 - May 1". The end token names its month only when
// it differs from the start month.
package timesheet

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RangeSeparator splits the start and end tokens of a week range.
const RangeSeparator = " - "

var monthAbbreviations = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var (
	startTokenPattern = regexp.MustCompile(`^([A-Za-z]+)\s+(\S+)$`)
	endTokenPattern   = regexp.MustCompile(`^(?:([A-Za-z]+)\s+)?(\S+)$`)
	dayPattern        = regexp.MustCompile(`^\d{1,2}$`)
)

// WeekDateRange is a parsed week range.
type WeekDateRange struct {
	RawText    string
	StartMonth int // 1-12, or 0 for an unknown abbreviation
	StartDay   int
	EndMonth   int // inherited from StartMonth when the end token has no month
	EndDay     int

	startMonthText string
	endMonthText   string
}

// SortKey orders week ranges by their start date.
type SortKey struct {
	Month int
	Day   int
}

// Less reports whether k sorts before other.
func (k SortKey) Less(other SortKey) bool {
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}

// ParseError reports why a week range could not be parsed.
type ParseError struct {
	Text   string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("timesheet: cannot parse week range %q: %s", e.Text, e.Reason)
}

// MonthNumber maps a three-letter month abbreviation to 1-12. Anything not in
// the table yields 0.
func MonthNumber(abbr string) int {
	for i, m := range monthAbbreviations {
		if strings.EqualFold(abbr, m) {
			return i + 1
		}
	}
	return 0
}

// ParseWeekRange parses text into a WeekDateRange. On failure the returned
// range still carries RawText so callers can keep the original label.
func ParseWeekRange(text string) (WeekDateRange, error) {
	r := WeekDateRange{RawText: text}

	startText, endText, ok := strings.Cut(strings.TrimSpace(text), RangeSeparator)
	if !ok {
		return r, &ParseError{Text: text, Reason: fmt.Sprintf("missing separator %q", RangeSeparator)}
	}

	start := startTokenPattern.FindStringSubmatch(strings.TrimSpace(startText))
	if start == nil {
		return r, &ParseError{Text: text, Reason: "start must be a month and a day"}
	}
	startDay, err := parseDay(start[2])
	if err != nil {
		return r, &ParseError{Text: text, Reason: "start " + err.Error()}
	}

	end := endTokenPattern.FindStringSubmatch(strings.TrimSpace(endText))
	if end == nil {
		return r, &ParseError{Text: text, Reason: "end must be a day, optionally preceded by a month"}
	}
	endDay, err := parseDay(end[2])
	if err != nil {
		return r, &ParseError{Text: text, Reason: "end " + err.Error()}
	}

	r.startMonthText = start[1]
	r.StartMonth = MonthNumber(start[1])
	r.StartDay = startDay
	r.EndDay = endDay
	if end[1] != "" {
		r.endMonthText = end[1]
		r.EndMonth = MonthNumber(end[1])
	} else {
		r.EndMonth = r.StartMonth
	}
	return r, nil
}

func parseDay(token string) (int, error) {
	if !dayPattern.MatchString(token) {
		return 0, fmt.Errorf("day %q is not a number", token)
	}
	day, err := strconv.Atoi(token)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("day %q is out of range", token)
	}
	return day, nil
}

// SortKey is the (month, day) of the start date.
func (r WeekDateRange) SortKey() SortKey {
	return SortKey{Month: r.StartMonth, Day: r.StartDay}
}

// EndDate resolves the end date within year. It reports false when the end
// month is unknown or the day does not exist in that month.
func (r WeekDateRange) EndDate(year int, loc *time.Location) (time.Time, bool) {
	if r.EndMonth < 1 || r.EndMonth > 12 || r.EndDay < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(r.EndMonth), r.EndDay, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(r.EndMonth) {
		return time.Time{}, false
	}
	return d, true
}

// Normalized renders the range back into its canonical text. Parsing the
// result yields the same SortKey.
func (r WeekDateRange) Normalized() string {
	if r.StartDay == 0 {
		return r.RawText
	}
	start := fmt.Sprintf("%s %d", monthText(r.StartMonth, r.startMonthText), r.StartDay)
	if r.endMonthText == "" && r.EndMonth == r.StartMonth {
		return fmt.Sprintf("%s%s%d", start, RangeSeparator, r.EndDay)
	}
	return fmt.Sprintf("%s%s%s %d", start, RangeSeparator, monthText(r.EndMonth, r.endMonthText), r.EndDay)
}

func monthText(month int, raw string) string {
	if month >= 1 && month <= 12 {
		return monthAbbreviations[month-1]
	}
	return raw
}

// SortKeyOf parses text and returns its key; unparseable text sorts first
// with key (0,0).
func SortKeyOf(text string) SortKey {
	r, err := ParseWeekRange(text)
	if err != nil {
		return SortKey{}
	}
	return r.SortKey()
}

// SortRanges orders week range texts chronologically in place. The sort is
// stable so equal keys keep discovery order.
func SortRanges(texts []string) {
	sort.SliceStable(texts, func(i, j int) bool {
		return SortKeyOf(texts[i]).Less(SortKeyOf(texts[j]))
	})
}
