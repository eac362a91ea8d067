package workflow

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"invoicer/internal/errs"
	"invoicer/internal/invoice"
	"invoicer/internal/timesheet"
)

// MaxFilenameLength caps sanitized file names, in characters.
const MaxFilenameLength = 100

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeFilename replaces characters that are invalid in file names on
// common filesystems with underscores and caps the length.
func SanitizeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if utf8.RuneCountInString(clean) > MaxFilenameLength {
		clean = string([]rune(clean)[:MaxFilenameLength])
	}
	return clean
}

// invoiceFolder returns <outputDir>/<title>.
func invoiceFolder(outputDir, title string) string {
	return filepath.Join(outputDir, SanitizeFilename(title))
}

func screenshotPath(folder, weekRange string) string {
	return filepath.Join(folder, SanitizeFilename(weekRange)+".png")
}

func pdfPath(folder, title string) string {
	return filepath.Join(folder, SanitizeFilename(title)+".pdf")
}

// latestInvoiceFolder finds the highest-numbered "Invoice #N" folder in
// outputDir.
func latestInvoiceFolder(outputDir string) (string, error) {
	const op = "latestInvoiceFolder"

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.MissingData(op, "output directory "+outputDir+" does not exist")
		}
		return "", errs.IO(op, err, "failed to read output directory")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	latest, ok := invoice.Latest(names)
	if !ok {
		return "", errs.MissingData(op, "no invoice folder in "+outputDir)
	}
	return latest, nil
}

// folderArtifacts returns the screenshots, sorted by week, and the PDF of an
// invoice folder.
func folderArtifacts(folder, title string) ([]string, string, error) {
	const op = "folderArtifacts"

	images, err := filepath.Glob(filepath.Join(folder, "*.png"))
	if err != nil {
		return nil, "", errs.IO(op, err, "failed to list screenshots")
	}
	sort.SliceStable(images, func(i, j int) bool {
		return weekKeyOfFile(images[i]).Less(weekKeyOfFile(images[j]))
	})

	pdf := pdfPath(folder, title)
	if _, err := os.Stat(pdf); err != nil {
		if os.IsNotExist(err) {
			return nil, "", errs.MissingData(op, "invoice PDF "+pdf+" not found")
		}
		return nil, "", errs.IO(op, err, "failed to stat invoice PDF")
	}
	return images, pdf, nil
}

// weekKeyOfFile orders screenshots by the week range in their file name.
func weekKeyOfFile(path string) timesheet.SortKey {
	return timesheet.SortKeyOf(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}
