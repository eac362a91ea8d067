package hours

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	totalLabelPattern = regexp.MustCompile(`(?i)total`)

	// Patterns are tried in order against the text following a "Total" label.
	clockPattern   = regexp.MustCompile(`^\D{0,40}?(\d{1,3}):([0-5]\d)\b`)
	unitsPattern   = regexp.MustCompile(`(?i)^\D{0,40}?(\d{1,3})\s*h(?:ours?|rs?)?\s*(\d{1,2})\s*m`)
	decimalPattern = regexp.MustCompile(`^\D{0,40}?(\d+(?:[.,]\d+)?)`)
)

const totalHoursField = "total_hours"

// ParseTotalHours finds the weekly total in OCR text. The last "Total" label
// followed by a value wins, since timesheet summaries print the grand total
// at the bottom. Values may be decimal ("39.5"), clock ("39:30") or unit
// ("39h 30m") notation.
func ParseTotalHours(text string) (float64, error) {
	locs := totalLabelPattern.FindAllStringIndex(text, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		if v, ok := parseHoursValue(text[locs[i][1]:]); ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no total hours found in %d characters of text", len(text))
}

func parseHoursValue(s string) (float64, bool) {
	if m := clockPattern.FindStringSubmatch(s); m != nil {
		return hoursAndMinutes(m[1], m[2])
	}
	if m := unitsPattern.FindStringSubmatch(s); m != nil {
		return hoursAndMinutes(m[1], m[2])
	}
	if m := decimalPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		return v, err == nil
	}
	return 0, false
}

func hoursAndMinutes(h, m string) (float64, bool) {
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes >= 60 {
		return 0, false
	}
	return float64(hours) + float64(minutes)/60, true
}

// parseHoursJSON decodes a {"total_hours": n} reply, tolerating markdown code
// fences around it.
func parseHoursJSON(content string) (float64, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return 0, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}
	raw, ok := reply[totalHoursField]
	if !ok {
		return 0, fmt.Errorf("model reply has no %s field", totalHoursField)
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, nil
	}
	// Some local models quote numbers
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("%s is neither a number nor a string: %s", totalHoursField, raw)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number: %w", totalHoursField, text, err)
	}
	return value, nil
}
