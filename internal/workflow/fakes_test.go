package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"invoicer/internal/gmail"
	"invoicer/internal/render"
	"invoicer/internal/sheets"
	"invoicer/pkg/models"
)

func timesheetHTML(week string) string {
	return "<html><head><style>td{padding:2px}</style></head><body>" +
		render.SectionStartMarker +
		"<table><tr><td>" + week + "</td><td>Total 40:00</td></tr></table>" +
		render.SectionEndMarker +
		"</body></html>"
}

type fakeThread struct {
	id      string
	subject string
	html    string
	htmlErr error
}

type fakeMailbox struct {
	threads []fakeThread
	listErr error

	gotLabel string
	gotMax   int64
}

func newMailbox(weeks ...string) *fakeMailbox {
	m := &fakeMailbox{}
	for i, w := range weeks {
		m.threads = append(m.threads, fakeThread{
			id:      fmt.Sprintf("t%d", i+1),
			subject: models.TimesheetSubjectPrefix + w,
			html:    timesheetHTML(w),
		})
	}
	return m
}

func (m *fakeMailbox) ListLabeledThreads(_ context.Context, label string, maxThreads int64) ([]string, error) {
	m.gotLabel, m.gotMax = label, maxThreads
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for _, t := range m.threads {
		ids = append(ids, t.id)
	}
	return ids, nil
}

func (m *fakeMailbox) find(id string) fakeThread {
	for _, t := range m.threads {
		if t.id == id {
			return t
		}
	}
	return fakeThread{}
}

func (m *fakeMailbox) ThreadHTML(_ context.Context, id string) (string, error) {
	t := m.find(id)
	return t.html, t.htmlErr
}

func (m *fakeMailbox) ThreadSubject(_ context.Context, id string) (string, error) {
	return m.find(id).subject, nil
}

type duplication struct {
	sourceID int64
	title    string
}

type fakeSpreadsheet struct {
	tabs   []models.Tab
	nextID int64

	duplicates []duplication
	writes     map[string]sheets.UpdatePlan
	exported   []int64

	// detach leaves duplicated tabs out of later listings.
	detach       bool
	duplicateErr error
	writeErr     error
	exportErr    error
}

func newSpreadsheet(titles ...string) *fakeSpreadsheet {
	s := &fakeSpreadsheet{nextID: 100, writes: map[string]sheets.UpdatePlan{}}
	for i, title := range titles {
		s.tabs = append(s.tabs, models.Tab{ID: int64(i + 10), Title: title})
	}
	return s
}

func (s *fakeSpreadsheet) ListTabs(context.Context) ([]models.Tab, error) {
	return append([]models.Tab(nil), s.tabs...), nil
}

func (s *fakeSpreadsheet) DuplicateTab(_ context.Context, sourceID int64, newTitle string) (models.Tab, error) {
	s.duplicates = append(s.duplicates, duplication{sourceID: sourceID, title: newTitle})
	if s.duplicateErr != nil {
		return models.Tab{}, s.duplicateErr
	}
	tab := models.Tab{ID: s.nextID, Title: newTitle}
	s.nextID++
	if !s.detach {
		s.tabs = append(s.tabs, tab)
	}
	return tab, nil
}

func (s *fakeSpreadsheet) WriteRanges(_ context.Context, tabTitle string, plan sheets.UpdatePlan) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes[tabTitle] = plan
	return nil
}

func (s *fakeSpreadsheet) ExportTabAsPDF(_ context.Context, tabID int64, _ sheets.ExportOptions) ([]byte, error) {
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	s.exported = append(s.exported, tabID)
	return []byte(fmt.Sprintf("%%PDF tab %d", tabID)), nil
}

type fakeRenderer struct {
	fail     map[string]error // keyed by file name
	rendered []string
}

func (r *fakeRenderer) RenderHTMLToImage(_ context.Context, html, outputPath string) error {
	if err := r.fail[filepath.Base(outputPath)]; err != nil {
		return err
	}
	r.rendered = append(r.rendered, outputPath)
	return os.WriteFile(outputPath, []byte("png:"+html), 0o644)
}

type fakeExtractor struct {
	hours map[string]float64 // keyed by file name
	errs  map[string]error
}

func (e *fakeExtractor) ExtractHours(_ context.Context, imagePath string) (float64, error) {
	name := filepath.Base(imagePath)
	if err := e.errs[name]; err != nil {
		return 0, err
	}
	if v, ok := e.hours[name]; ok {
		return v, nil
	}
	return 0, errors.New("no hours for " + name)
}

type fakeDrafter struct {
	drafts []gmail.Draft
	err    error
}

func (d *fakeDrafter) CreateDraft(_ context.Context, draft gmail.Draft) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.drafts = append(d.drafts, draft)
	return fmt.Sprintf("draft-%d", len(d.drafts)), nil
}
