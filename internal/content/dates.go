package content

import (
	"fmt"
	"time"
)

// RFC2822 formats a date the way feed readers expect it.
func RFC2822(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05 +0000")
}

// PrettyDate formats a date for display, with an ordinal suffix on the day.
func PrettyDate(t time.Time) string {
	suffix := "th"
	switch t.Day() {
	case 1, 21, 31:
		suffix = "st"
	case 2, 22:
		suffix = "nd"
	case 3, 23:
		suffix = "rd"
	}
	return fmt.Sprintf("%s %d%s, %d", t.Format("Jan"), t.Day(), suffix, t.Year())
}
