// Package workflow runs one invoice cycle: it turns the two latest weekly
// timesheet emails into a numbered invoice tab, a PDF export and a draft
// email carrying them.
//
// Every collaborator is an interface passed to New, so the whole cycle runs
// against in-memory fakes in tests.
package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"invoicer/internal/gmail"
	"invoicer/internal/hours"
	"invoicer/internal/logger"
	"invoicer/internal/sheets"
	"invoicer/internal/timesheet"
	"invoicer/pkg/models"
)

// Mailbox lists and reads the weekly timesheet emails.
type Mailbox interface {
	ListLabeledThreads(ctx context.Context, label string, maxThreads int64) ([]string, error)
	ThreadHTML(ctx context.Context, threadID string) (string, error)
	ThreadSubject(ctx context.Context, threadID string) (string, error)
}

// Spreadsheet manages the invoice tabs.
type Spreadsheet interface {
	ListTabs(ctx context.Context) ([]models.Tab, error)
	DuplicateTab(ctx context.Context, sourceID int64, newTitle string) (models.Tab, error)
	WriteRanges(ctx context.Context, tabTitle string, plan sheets.UpdatePlan) error
	ExportTabAsPDF(ctx context.Context, tabID int64, opts sheets.ExportOptions) ([]byte, error)
}

// Renderer screenshots an HTML page to a PNG file.
type Renderer interface {
	RenderHTMLToImage(ctx context.Context, html, outputPath string) error
}

// Drafter saves an outbound email as a draft and returns its ID.
type Drafter interface {
	CreateDraft(ctx context.Context, d gmail.Draft) (string, error)
}

// Dependencies are the external collaborators of a cycle. Renderer,
// Extractor and Drafter may be nil when screenshots are skipped.
type Dependencies struct {
	Mailbox     Mailbox
	Spreadsheet Spreadsheet
	Renderer    Renderer
	Extractor   hours.Extractor
	Drafter     Drafter
}

// Options tune a cycle.
type Options struct {
	Label           string
	MaxThreads      int64
	OutputDir       string
	SkipScreenshots bool
	DefaultHours    float64
	Export          sheets.ExportOptions
	Draft           DraftTemplate

	// ExtractRequestsPerMinute paces hours extraction; 0 is unpaced.
	ExtractRequestsPerMinute int

	// Now is the clock used for the submission date; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Label:        "GCS/Weekly Timesheet",
		MaxThreads:   2,
		OutputDir:    "invoices",
		DefaultHours: hours.DefaultHours,
		Export:       sheets.DefaultExportOptions(),
		Draft:        DefaultDraftTemplate(),
	}
}

// Orchestrator sequences the stages of an invoice cycle.
type Orchestrator struct {
	deps        Dependencies
	opts        Options
	coordinator *hours.Coordinator
	submission  *timesheet.SubmissionCalculator
	log         zerolog.Logger
}

// New creates an orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.MaxThreads < RequiredWeeks {
		opts.MaxThreads = RequiredWeeks
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "invoices"
	}
	if opts.Export.PaperSize == "" {
		opts.Export = sheets.DefaultExportOptions()
	}
	return &Orchestrator{
		deps:        deps,
		opts:        opts,
		coordinator: hours.NewCoordinator(deps.Extractor, opts.DefaultHours).WithRequestsPerMinute(opts.ExtractRequestsPerMinute),
		submission:  timesheet.NewSubmissionCalculator(opts.Now),
		log:         logger.WithComponent("workflow"),
	}
}
