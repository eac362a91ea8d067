package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/errs"
)

func TestDraftTemplateRender(t *testing.T) {
	tmpl := DraftTemplate{
		From:    "billing@example.com",
		To:      []string{"ap@example.com"},
		Cc:      []string{"me@example.com"},
		Subject: "  {{.Title}} ({{index .Weeks 0}} to {{index .Weeks 1}})\n",
		Body:    "Invoice {{.Number}} submitted {{.SubmissionDate}}.",
	}

	draft, err := tmpl.Render(DraftData{
		Title:          "Invoice #6",
		Number:         6,
		SubmissionDate: "04/26/2026",
		Weeks:          []string{weekOne, weekTwo},
	}, []string{"a.png", "b.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "billing@example.com", draft.From)
	assert.Equal(t, []string{"ap@example.com"}, draft.To)
	assert.Equal(t, []string{"me@example.com"}, draft.Cc)
	assert.Equal(t, "Invoice #6 (Apr 11 - 17 to Apr 18 - 24)", draft.Subject)
	assert.Equal(t, "Invoice 6 submitted 04/26/2026.", draft.Body)
	assert.Equal(t, []string{"a.png", "b.pdf"}, draft.Attachments)
}

func TestDraftTemplateRenderErrors(t *testing.T) {
	_, err := DraftTemplate{Subject: "{{.Title"}.Render(DraftData{}, nil)
	assert.ErrorContains(t, err, "parse draft subject template")

	_, err = DraftTemplate{Subject: "ok", Body: "{{.Nope}}"}.Render(DraftData{}, nil)
	assert.ErrorContains(t, err, "execute draft body template")
}

func newLatestFolder(t *testing.T, outputDir string) string {
	t.Helper()
	folder := filepath.Join(outputDir, "Invoice #12")
	touch(t, filepath.Join(folder, weekTwo+".png"))
	touch(t, filepath.Join(folder, weekOne+".png"))
	touch(t, filepath.Join(folder, "Invoice #12.pdf"))
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "Invoice #5"), 0o755))
	return folder
}

func TestDraftLatest(t *testing.T) {
	h := newHarness(t)
	folder := newLatestFolder(t, h.opts.OutputDir)

	result, err := h.orchestrator().DraftLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StageDone, result.Stage)
	assert.Equal(t, "Invoice #12", result.Title)
	assert.Equal(t, 12, result.Invoice.Number)
	assert.Equal(t, folder, result.Folder)
	assert.Equal(t, []string{weekOne, weekTwo}, result.Weeks)
	assert.Equal(t, "draft-1", result.DraftID)

	require.Len(t, h.drafter.drafts, 1)
	assert.Equal(t, "Invoice #12", h.drafter.drafts[0].Subject)
	assert.Equal(t, []string{
		filepath.Join(folder, weekOne+".png"),
		filepath.Join(folder, weekTwo+".png"),
		filepath.Join(folder, "Invoice #12.pdf"),
	}, h.drafter.drafts[0].Attachments)

	// Neither the mailbox nor the spreadsheet is touched.
	assert.Empty(t, h.mailbox.gotLabel)
	assert.Empty(t, h.sheet.duplicates)
	assert.Empty(t, h.sheet.writes)
}

func TestDraftLatestWithoutFolders(t *testing.T) {
	h := newHarness(t)

	result, err := h.orchestrator().DraftLatest(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrMissingData)
	assert.Equal(t, StagePreparePaths, result.Stage)
	assert.Empty(t, h.drafter.drafts)
}

func TestDraftLatestRequiresDrafter(t *testing.T) {
	h := newHarness(t)
	newLatestFolder(t, h.opts.OutputDir)

	orch := New(Dependencies{Mailbox: h.mailbox, Spreadsheet: h.sheet}, h.opts)
	result, err := orch.DraftLatest(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrMissingData)
	assert.Equal(t, StageDraft, result.Stage)
}

func TestDraftLatestCreateFailure(t *testing.T) {
	h := newHarness(t)
	newLatestFolder(t, h.opts.OutputDir)
	h.drafter.err = errors.New("rate limited")

	_, err := h.orchestrator().DraftLatest(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalService)
}
