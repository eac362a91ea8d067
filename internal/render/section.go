package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"invoicer/internal/errs"
)

// Markers delimiting the timesheet table in a summary email.
const (
	SectionStartMarker = "<!-- == Header Section == -->"
	SectionEndMarker   = "<!-- == //Footer Section == -->"
)

// noScrollbarStyle keeps scrollbars out of the screenshot.
const noScrollbarStyle = `<style>
  html, body { overflow: hidden !important; }
  ::-webkit-scrollbar { display: none; }
</style>`

// ExtractSection cuts the header-to-footer section out of a timesheet email
// and wraps it, together with every <style> block of the original, in a
// standalone page.
func ExtractSection(fullHTML string) (string, error) {
	const op = "ExtractSection"

	start := strings.Index(fullHTML, SectionStartMarker)
	end := strings.Index(fullHTML, SectionEndMarker)
	if start == -1 || end == -1 || end < start {
		return "", errs.MissingData(op, "header/footer section markers not found in HTML")
	}
	section := fullHTML[start : end+len(SectionEndMarker)]

	styles, err := styleBlocks(fullHTML)
	if err != nil {
		return "", errs.New(op, errs.ErrMissingData, err, "failed to parse HTML")
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	for _, style := range styles {
		page.WriteString(style)
		page.WriteString("\n")
	}
	page.WriteString(noScrollbarStyle)
	page.WriteString("\n</head>\n<body>\n")
	page.WriteString(section)
	page.WriteString("\n</body>\n</html>\n")

	return page.String(), nil
}

func styleBlocks(fullHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fullHTML))
	if err != nil {
		return nil, err
	}

	var styles []string
	var outerErr error
	doc.Find("style").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		block, err := goquery.OuterHtml(sel)
		if err != nil {
			outerErr = err
			return false
		}
		styles = append(styles, block)
		return true
	})
	return styles, outerErr
}
