package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for every date in the Document.
const DateLayout = "2006-01-02"

// PresetColors is the marker palette offered by the dashboard.
var PresetColors = []string{
	"#2563eb", "#dc2626", "#16a34a", "#ca8a04",
	"#7c3aed", "#db2777", "#475569", "#0891b2",
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ParseDate parses a YYYY-MM-DD date. The empty string is rejected.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a YYYY-MM-DD date", ErrValidation, field)
	}
	return t, nil
}

// NormalizeColor lowercases a hex color and checks its shape.
// An empty color falls back to the first preset.
func NormalizeColor(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return PresetColors[0], nil
	}
	if !hexColor.MatchString(c) {
		return "", fmt.Errorf("%w: color must be a hex value like #2563eb", ErrValidation)
	}
	return c, nil
}
