package core

import (
	"fmt"
	"strings"
)

// Markers that have no business inside bill text. Stored text is echoed
// back to browsers and spreadsheet cells, so the obvious injection shapes
// are rejected outright rather than sanitized.
var suspectMarkers = []string{
	"<script",
	"javascript:",
	"onerror=",
	"onload=",
	"../",
	"union select",
	"drop table",
}

var ErrUnsafeText = fmt.Errorf("%w: text contains unsafe content", ErrValidation)

// checkText validates a free-text field: length bound, control characters
// and injection markers. multiline permits tab, newline and carriage
// return, for notes fields.
func checkText(s string, maxLen int, multiline bool) error {
	if len(s) > maxLen {
		return fmt.Errorf("%w: text too long (max %d characters)", ErrValidation, maxLen)
	}
	for _, r := range s {
		if r == 127 || (r < 32 && !(multiline && (r == '\t' || r == '\n' || r == '\r'))) {
			return fmt.Errorf("%w: control character", ErrUnsafeText)
		}
	}
	low := strings.ToLower(s)
	for _, marker := range suspectMarkers {
		if strings.Contains(low, marker) {
			return fmt.Errorf("%w: %q", ErrUnsafeText, marker)
		}
	}
	return nil
}
