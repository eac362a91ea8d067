package timesheet

import (
	"time"

	"github.com/rs/zerolog"
	"invoicer/internal/logger"
)

const (
	// SubmissionOffsetDays is added to the end of the latest week.
	SubmissionOffsetDays = 2

	// SubmissionDateLayout renders dates as MM/DD/YYYY.
	SubmissionDateLayout = "01/02/2006"
)

// Submission is a computed submission date.
type Submission struct {
	Date     string // MM/DD/YYYY
	Fallback bool   // true when the run date was used instead of the week end
}

// SubmissionCalculator derives the submission date of an invoice.
type SubmissionCalculator struct {
	now func() time.Time
	log zerolog.Logger
}

// NewSubmissionCalculator creates a calculator. A nil now uses time.Now.
func NewSubmissionCalculator(now func() time.Time) *SubmissionCalculator {
	if now == nil {
		now = time.Now
	}
	return &SubmissionCalculator{
		now: now,
		log: logger.WithComponent("submission"),
	}
}

// Calculate returns the end date of latest, placed in the current calendar
// year, plus SubmissionOffsetDays. When the end date cannot be resolved the
// current date is returned instead.
//
// The year is always the run year, not the year the week occurred in. A
// December week processed in January therefore lands in the wrong year.
func (c *SubmissionCalculator) Calculate(latest WeekDateRange) Submission {
	now := c.now()

	end, ok := latest.EndDate(now.Year(), now.Location())
	if !ok {
		date := now.Format(SubmissionDateLayout)
		c.log.Warn().
			Str("week_range", latest.RawText).
			Str("submission_date", date).
			Msg("Cannot resolve week end date, using current date for submission")
		return Submission{Date: date, Fallback: true}
	}

	date := end.AddDate(0, 0, SubmissionOffsetDays).Format(SubmissionDateLayout)
	c.log.Info().
		Str("week_range", latest.RawText).
		Str("week_end", end.Format("Jan 2")).
		Str("submission_date", date).
		Msgf("Calculated submission date: %s (%d days after %s)", date, SubmissionOffsetDays, end.Format("Jan 2"))
	return Submission{Date: date}
}
