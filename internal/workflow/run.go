package workflow

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicer/internal/errs"
	"invoicer/internal/hours"
	"invoicer/internal/invoice"
	"invoicer/internal/logger"
	"invoicer/internal/render"
	"invoicer/internal/sheets"
	"invoicer/internal/timesheet"
	"invoicer/pkg/models"
)

// RequiredWeeks is the number of weekly timesheets one invoice covers.
const RequiredWeeks = 2

// week is a usable timesheet thread with its parsed range.
type week struct {
	thread models.EmailThreadSummary
	text   string
	key    timesheet.SortKey
}

// Run executes a full invoice cycle. Fatal stage failures abort the cycle and
// are returned together with the partial result.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.New().String()}
	log := o.log.With().Str("run_id", result.RunID).Logger()

	log.Info().
		Str("label", o.opts.Label).
		Bool("skip_screenshots", o.opts.SkipScreenshots).
		Msg("Starting invoice cycle")

	// Discover
	o.enter(log, result, StageDiscover)
	threads, err := o.discover(ctx, log, result)
	if err != nil {
		return result, o.fail(log, StageDiscover, err)
	}

	// Validate
	o.enter(log, result, StageValidate)
	weeks, err := selectWeeks(threads, result)
	if err != nil {
		return result, o.fail(log, StageValidate, err)
	}
	for _, w := range weeks {
		result.Weeks = append(result.Weeks, w.text)
	}
	log.Info().Strs("weeks", result.Weeks).Msg("Selected timesheet weeks")

	// AllocateInvoice
	o.enter(log, result, StageAllocateInvoice)
	tab, identity, err := o.allocate(ctx, log)
	if err != nil {
		return result, o.fail(log, StageAllocateInvoice, err)
	}
	result.Invoice = identity
	result.Title = tab.Title
	result.TabID = tab.ID
	log = logger.WithInvoice("workflow", tab.Title).With().Str("run_id", result.RunID).Logger()

	// PreparePaths
	o.enter(log, result, StagePreparePaths)
	result.Folder = invoiceFolder(o.opts.OutputDir, tab.Title)
	if err := os.MkdirAll(result.Folder, 0o755); err != nil {
		return result, o.fail(log, StagePreparePaths, errs.IO("PreparePaths", err, "failed to create "+result.Folder))
	}
	log.Info().Str("folder", result.Folder).Msg("Prepared invoice folder")

	var records []hours.Record
	if o.opts.SkipScreenshots {
		log.Info().Msg("Skipping screenshots, hours extraction and draft")
	} else {
		// RenderScreenshots
		o.enter(log, result, StageRenderScreenshots)
		images := o.renderScreenshots(ctx, log, result, weeks)

		// ExtractHours
		o.enter(log, result, StageExtractHours)
		if o.deps.Extractor == nil {
			log.Warn().Msg("No hours extractor configured, using fallback hours")
		} else {
			records = o.coordinator.ExtractAll(ctx, images)
		}
		for _, r := range records {
			if r.Err != nil {
				result.skip(StageExtractHours, r.WeekRange, r.Err)
			}
		}
	}

	// ComputeDates
	o.enter(log, result, StageComputeDates)
	latest, err := timesheet.ParseWeekRange(weeks[len(weeks)-1].text)
	if err != nil {
		latest = timesheet.WeekDateRange{RawText: weeks[len(weeks)-1].text}
	}
	submission := o.submission.Calculate(latest)
	result.SubmissionDate = submission.Date
	result.SubmissionFallback = submission.Fallback

	// ComposeUpdate
	o.enter(log, result, StageComposeUpdate)
	result.Hours = o.coordinator.Slots(records, result.Weeks)
	plan := sheets.Compose(invoiceFields(identity, submission.Date, result.Weeks, result.Hours))
	log.Debug().Int("ranges", len(plan)).Msg("Composed update plan")

	// ApplyUpdate
	o.enter(log, result, StageApplyUpdate)
	if err := o.deps.Spreadsheet.WriteRanges(ctx, tab.Title, plan); err != nil {
		return result, o.fail(log, StageApplyUpdate, errs.External("ApplyUpdate", err, "failed to write "+tab.Title))
	}

	// ExportArtifact
	o.enter(log, result, StageExportArtifact)
	pdf, err := o.export(ctx, tab.Title, result.Folder)
	if err != nil {
		return result, o.fail(log, StageExportArtifact, err)
	}
	result.PDFPath = pdf

	// Draft
	if !o.opts.SkipScreenshots {
		o.enter(log, result, StageDraft)
		draftID, err := o.createDraft(ctx, log, result)
		if err != nil {
			return result, o.fail(log, StageDraft, err)
		}
		result.DraftID = draftID
	}

	result.Stage = StageDone
	log.Info().
		Str("submission_date", result.SubmissionDate).
		Str("pdf", result.PDFPath).
		Int("screenshots", len(result.Images)).
		Int("skipped", len(result.Skipped)).
		Msg("Invoice cycle complete")

	return result, nil
}

func (o *Orchestrator) enter(log zerolog.Logger, result *Result, stage Stage) {
	result.Stage = stage
	log.Debug().Stringer("stage", stage).Msg("Entering stage")
}

func (o *Orchestrator) fail(log zerolog.Logger, stage Stage, err error) error {
	log.Error().Err(err).Stringer("stage", stage).Msg("Stage failed")
	return err
}

// discover fetches every labeled thread. Threads whose subject or body cannot
// be fetched are skipped.
func (o *Orchestrator) discover(ctx context.Context, log zerolog.Logger, result *Result) ([]models.EmailThreadSummary, error) {
	ids, err := o.deps.Mailbox.ListLabeledThreads(ctx, o.opts.Label, o.opts.MaxThreads)
	if err != nil {
		return nil, errs.External("Discover", err, "failed to list timesheet threads")
	}

	threads := make([]models.EmailThreadSummary, 0, len(ids))
	for _, id := range ids {
		html, err := o.deps.Mailbox.ThreadHTML(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("thread_id", id).Msg("Failed to fetch thread body, skipping")
			result.skip(StageDiscover, id, err)
			continue
		}
		if html == "" {
			log.Warn().Str("thread_id", id).Msg("No HTML part found in thread, skipping")
			result.skip(StageDiscover, id, fmt.Errorf("no HTML part"))
			continue
		}

		subject, err := o.deps.Mailbox.ThreadSubject(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("thread_id", id).Msg("Failed to fetch thread subject, skipping")
			result.skip(StageDiscover, id, err)
			continue
		}

		threads = append(threads, models.EmailThreadSummary{ID: id, Subject: subject, HTMLBody: html})
	}

	log.Info().Int("threads", len(ids)).Int("usable", len(threads)).Msg("Discovered timesheet threads")
	return threads, nil
}

// selectWeeks orders usable threads chronologically and keeps the first
// RequiredWeeks of them. A week that arrives in more than one thread is
// billed once, from the first thread listed; the others are recorded as
// skipped.
func selectWeeks(threads []models.EmailThreadSummary, result *Result) ([]week, error) {
	var weeks []week
	seen := make(map[string]string, len(threads))
	for _, t := range threads {
		if !t.HasHTML() {
			continue
		}
		text := t.WeekRangeText()
		name := SanitizeFilename(text)
		if first, ok := seen[name]; ok {
			result.skip(StageValidate, t.ID, fmt.Errorf("same week as thread %s: %s", first, text))
			continue
		}
		seen[name] = t.ID
		weeks = append(weeks, week{thread: t, text: text, key: timesheet.SortKeyOf(text)})
	}
	if len(weeks) < RequiredWeeks {
		return nil, errs.MissingData("Validate",
			fmt.Sprintf("not enough timesheets: %d distinct weeks, at least %d are required", len(weeks), RequiredWeeks))
	}

	sort.SliceStable(weeks, func(i, j int) bool {
		return weeks[i].key.Less(weeks[j].key)
	})
	return weeks[:RequiredWeeks], nil
}

// allocate duplicates the highest-numbered invoice tab as the next invoice.
func (o *Orchestrator) allocate(ctx context.Context, log zerolog.Logger) (models.Tab, models.InvoiceIdentity, error) {
	tabs, err := o.deps.Spreadsheet.ListTabs(ctx)
	if err != nil {
		return models.Tab{}, models.InvoiceIdentity{}, errs.External("AllocateInvoice", err, "failed to list tabs")
	}

	alloc, err := invoice.Allocate(tabs)
	if err != nil {
		return models.Tab{}, models.InvoiceIdentity{}, err
	}

	tab, err := o.deps.Spreadsheet.DuplicateTab(ctx, alloc.Source.ID, alloc.Identity.Title())
	if err != nil {
		return models.Tab{}, models.InvoiceIdentity{}, errs.External("AllocateInvoice", err, "failed to duplicate "+alloc.Source.Title)
	}

	log.Info().
		Str("source_tab", alloc.Source.Title).
		Str("new_tab", tab.Title).
		Int("invoice_number", alloc.Identity.Number).
		Msg("Duplicated invoice tab")

	return tab, alloc.Identity, nil
}

// renderScreenshots renders one PNG per week. Weeks that fail are logged,
// recorded as skipped and left out.
func (o *Orchestrator) renderScreenshots(ctx context.Context, log zerolog.Logger, result *Result, weeks []week) []hours.Image {
	if o.deps.Renderer == nil {
		log.Warn().Msg("No renderer configured, no screenshots rendered")
		return nil
	}

	var images []hours.Image
	for _, w := range weeks {
		path := screenshotPath(result.Folder, w.text)
		if err := o.renderWeek(ctx, w, path); err != nil {
			log.Warn().Err(err).Str("week", w.text).Msg("Failed to render screenshot, skipping")
			result.skip(StageRenderScreenshots, w.text, err)
			continue
		}
		images = append(images, hours.Image{WeekRange: w.text, Path: path})
		result.Images = append(result.Images, path)
	}
	return images
}

func (o *Orchestrator) renderWeek(ctx context.Context, w week, path string) error {
	page, err := render.ExtractSection(w.thread.HTMLBody)
	if err != nil {
		return err
	}
	return o.deps.Renderer.RenderHTMLToImage(ctx, page, path)
}

func invoiceFields(identity models.InvoiceIdentity, submissionDate string, weeks []string, slots []hours.Record) sheets.InvoiceFields {
	number := identity.Number
	fields := sheets.InvoiceFields{
		InvoiceNo:      &number,
		SubmissionDate: &submissionDate,
	}
	if len(weeks) > 0 {
		fields.WeekOneDate = &weeks[0]
	}
	if len(weeks) > 1 {
		fields.WeekTwoDate = &weeks[1]
	}
	if len(slots) > 0 {
		fields.WeekOneHours = &slots[0].Hours
	}
	if len(slots) > 1 {
		fields.WeekTwoHours = &slots[1].Hours
	}
	return fields
}

// export looks the new tab up again and saves its PDF into folder.
func (o *Orchestrator) export(ctx context.Context, title, folder string) (string, error) {
	const op = "ExportArtifact"

	tabs, err := o.deps.Spreadsheet.ListTabs(ctx)
	if err != nil {
		return "", errs.External(op, err, "failed to list tabs")
	}
	tab, err := sheets.FindTab(tabs, title)
	if err != nil {
		return "", err
	}

	content, err := o.deps.Spreadsheet.ExportTabAsPDF(ctx, tab.ID, o.opts.Export)
	if err != nil {
		return "", errs.External(op, err, "failed to export "+title)
	}

	path := pdfPath(folder, title)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errs.IO(op, err, "failed to write "+path)
	}
	return path, nil
}
