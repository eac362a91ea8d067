package workflow

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicer/internal/errs"
	"invoicer/internal/gmail"
	"invoicer/internal/invoice"
	"invoicer/internal/logger"
	"invoicer/pkg/models"
)

// DraftTemplate describes the outbound email. Subject and Body are
// text/template sources over DraftData.
type DraftTemplate struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// DraftData is the data available to draft templates.
type DraftData struct {
	Title          string // "Invoice #6"
	Number         int
	SubmissionDate string // empty when drafting from an existing folder
	Weeks          []string
}

// DefaultDraftTemplate addresses nobody and names the invoice in the subject.
func DefaultDraftTemplate() DraftTemplate {
	return DraftTemplate{
		From:    "me",
		Subject: "{{.Title}}",
		Body:    "Hi,\n\nPlease find attached {{.Title}} and the timesheets it covers.\n\nThanks!",
	}
}

// Render builds the draft for data with the given attachments.
func (t DraftTemplate) Render(data DraftData, attachments []string) (gmail.Draft, error) {
	subject, err := execute("subject", t.Subject, data)
	if err != nil {
		return gmail.Draft{}, err
	}
	body, err := execute("body", t.Body, data)
	if err != nil {
		return gmail.Draft{}, err
	}

	return gmail.Draft{
		From:        t.From,
		To:          t.To,
		Cc:          t.Cc,
		Subject:     strings.TrimSpace(subject),
		Body:        body,
		Attachments: attachments,
	}, nil
}

func execute(name, source string, data DraftData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse draft %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute draft %s template: %w", name, err)
	}
	return buf.String(), nil
}

func (o *Orchestrator) createDraft(ctx context.Context, log zerolog.Logger, result *Result) (string, error) {
	const op = "Draft"

	if o.deps.Drafter == nil {
		log.Warn().Msg("No drafter configured, skipping draft")
		return "", nil
	}

	draft, err := o.opts.Draft.Render(DraftData{
		Title:          result.Title,
		Number:         result.Invoice.Number,
		SubmissionDate: result.SubmissionDate,
		Weeks:          result.Weeks,
	}, result.Attachments())
	if err != nil {
		return "", errs.New(op, errs.ErrMissingData, err, "invalid draft template")
	}

	draftID, err := o.deps.Drafter.CreateDraft(ctx, draft)
	if err != nil {
		return "", errs.External(op, err, "failed to create draft for "+result.Title)
	}

	log.Info().
		Str("draft_id", draftID).
		Int("attachments", len(draft.Attachments)).
		Msg("Created invoice draft")

	return draftID, nil
}

// DraftLatest drafts the email for the highest-numbered invoice folder in the
// output directory, attaching its screenshots and PDF. It touches neither
// the mailbox threads nor the spreadsheet.
func (o *Orchestrator) DraftLatest(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.New().String(), Stage: StagePreparePaths}
	log := o.log.With().Str("run_id", result.RunID).Logger()

	title, err := latestInvoiceFolder(o.opts.OutputDir)
	if err != nil {
		return result, o.fail(log, StagePreparePaths, err)
	}

	result.Title = title
	result.Invoice = models.InvoiceIdentity{Number: invoice.NumberFromTitle(title)}
	result.Folder = invoiceFolder(o.opts.OutputDir, title)
	log = logger.WithInvoice("workflow", title).With().Str("run_id", result.RunID).Logger()

	images, pdf, err := folderArtifacts(result.Folder, title)
	if err != nil {
		return result, o.fail(log, StagePreparePaths, err)
	}
	result.Images = images
	result.PDFPath = pdf
	for _, img := range images {
		result.Weeks = append(result.Weeks, strings.TrimSuffix(filepath.Base(img), filepath.Ext(img)))
	}

	log.Info().
		Str("folder", result.Folder).
		Int("screenshots", len(images)).
		Msg("Found latest invoice folder")

	o.enter(log, result, StageDraft)
	if o.deps.Drafter == nil {
		return result, o.fail(log, StageDraft, errs.MissingData("DraftLatest", "no drafter configured"))
	}
	draftID, err := o.createDraft(ctx, log, result)
	if err != nil {
		return result, o.fail(log, StageDraft, err)
	}
	result.DraftID = draftID
	result.Stage = StageDone

	return result, nil
}
