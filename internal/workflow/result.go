package workflow

import (
	"invoicer/internal/hours"
	"invoicer/pkg/models"
)

// Skip records an item a per-item stage left out, and why.
type Skip struct {
	Stage  Stage  `json:"stage"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Result is the outcome of an invoice cycle. On failure it holds everything
// produced up to the failed stage.
type Result struct {
	RunID string `json:"run_id"`
	Stage Stage  `json:"stage"` // last stage entered

	Invoice            models.InvoiceIdentity `json:"invoice"`
	Title              string                 `json:"title"`
	TabID              int64                  `json:"tab_id"`
	SubmissionDate     string                 `json:"submission_date,omitempty"`
	SubmissionFallback bool                   `json:"submission_fallback,omitempty"`
	Weeks              []string               `json:"weeks"`
	Hours              []hours.Record         `json:"hours,omitempty"`

	Folder  string   `json:"folder,omitempty"`
	Images  []string `json:"images,omitempty"`
	PDFPath string   `json:"pdf_path,omitempty"`
	DraftID string   `json:"draft_id,omitempty"`

	Skipped []Skip `json:"skipped,omitempty"`
}

// Attachments lists the files a draft of this result carries: the
// screenshots followed by the PDF.
func (r *Result) Attachments() []string {
	files := make([]string, 0, len(r.Images)+1)
	files = append(files, r.Images...)
	if r.PDFPath != "" {
		files = append(files, r.PDFPath)
	}
	return files
}

func (r *Result) skip(stage Stage, item string, err error) {
	r.Skipped = append(r.Skipped, Skip{Stage: stage, Item: item, Reason: err.Error()})
}
