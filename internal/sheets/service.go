package sheets

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"invoicer/internal/errs"
	"invoicer/internal/logger"
	"invoicer/pkg/models"
)

// Service handles Google Sheets operations on the invoicing spreadsheet
type Service struct {
	sheetsService *sheets.Service
	httpClient    *http.Client
	spreadsheetID string
	exportBaseURL string
	log           zerolog.Logger
}

// NewSheetsService creates a new Google Sheets service. httpClient must carry
// the OAuth credentials; it is also used for PDF export requests.
func NewSheetsService(ctx context.Context, httpClient *http.Client, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		httpClient:    httpClient,
		spreadsheetID: spreadsheetID,
		exportBaseURL: defaultExportBaseURL,
		log:           log,
	}, nil
}

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var spreadsheetIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned as-is.
func extractSpreadsheetID(url string) (string, error) {
	url = strings.TrimSpace(url)

	if matches := spreadsheetURLPattern.FindStringSubmatch(url); len(matches) >= 2 {
		return matches[1], nil
	}
	if spreadsheetIDPattern.MatchString(url) {
		return url, nil
	}

	return "", fmt.Errorf("invalid Google Sheets URL format")
}

// SpreadsheetID returns the ID of the spreadsheet the service operates on
func (s *Service) SpreadsheetID() string {
	return s.spreadsheetID
}

// ListTabs returns every tab of the spreadsheet in display order
func (s *Service) ListTabs(ctx context.Context) ([]models.Tab, error) {
	const op = "ListTabs"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return nil, errs.External(op, err, "failed to get spreadsheet "+s.spreadsheetID)
	}

	tabs := make([]models.Tab, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties == nil {
			continue
		}
		tabs = append(tabs, models.Tab{
			ID:    sheet.Properties.SheetId,
			Title: sheet.Properties.Title,
		})
	}

	s.log.Debug().Int("tabs", len(tabs)).Msg("Listed spreadsheet tabs")
	return tabs, nil
}

// FindTab looks a tab up by exact title
func FindTab(tabs []models.Tab, title string) (models.Tab, error) {
	for _, tab := range tabs {
		if tab.Title == title {
			return tab, nil
		}
	}
	return models.Tab{}, errs.MissingData("FindTab", fmt.Sprintf("tab %q not found", title))
}

// DuplicateTab copies the tab with sourceID to a new tab called newTitle,
// appended after the last tab
func (s *Service) DuplicateTab(ctx context.Context, sourceID int64, newTitle string) (models.Tab, error) {
	const op = "DuplicateTab"

	tabs, err := s.ListTabs(ctx)
	if err != nil {
		return models.Tab{}, err
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				DuplicateSheet: &sheets.DuplicateSheetRequest{
					SourceSheetId:    sourceID,
					InsertSheetIndex: int64(len(tabs)),
					NewSheetName:     newTitle,
					ForceSendFields:  []string{"InsertSheetIndex"},
				},
			},
		},
	}

	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return models.Tab{}, errs.External(op, err, fmt.Sprintf("failed to duplicate tab %d as %q", sourceID, newTitle))
	}
	if len(resp.Replies) == 0 || resp.Replies[0].DuplicateSheet == nil || resp.Replies[0].DuplicateSheet.Properties == nil {
		return models.Tab{}, errs.External(op, fmt.Errorf("empty reply"), "duplicate request returned no sheet")
	}

	props := resp.Replies[0].DuplicateSheet.Properties
	s.log.Info().
		Int64("source_sheet_id", sourceID).
		Int64("sheet_id", props.SheetId).
		Str("title", props.Title).
		Msg("Duplicated invoice tab")

	return models.Tab{ID: props.SheetId, Title: props.Title}, nil
}

// WriteRanges writes plan into the tab titled tabTitle. User-entered input is
// used so the sheet parses numbers and dates the way a person typing would.
// An empty plan is a no-op.
func (s *Service) WriteRanges(ctx context.Context, tabTitle string, plan UpdatePlan) error {
	const op = "WriteRanges"

	if len(plan) == 0 {
		s.log.Debug().Str("sheet", tabTitle).Msg("Nothing to write")
		return nil
	}

	batchReq := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             toValueRanges(tabTitle, plan),
	}

	resp, err := s.sheetsService.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, batchReq).Context(ctx).Do()
	if err != nil {
		return errs.External(op, err, fmt.Sprintf("failed to write %d ranges to %q", len(plan), tabTitle))
	}

	s.log.Info().
		Str("sheet", tabTitle).
		Int64("updated_cells", resp.TotalUpdatedCells).
		Int("ranges", len(plan)).
		Msg("Wrote invoice fields")

	return nil
}

func toValueRanges(tabTitle string, plan UpdatePlan) []*sheets.ValueRange {
	data := make([]*sheets.ValueRange, 0, len(plan))
	for _, update := range plan {
		data = append(data, &sheets.ValueRange{
			Range:  qualifiedRange(tabTitle, update.Range),
			Values: [][]interface{}{{update.Value}},
		})
	}
	return data
}
