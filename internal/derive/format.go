package derive

import (
	"fmt"
	"strings"
)

// Clock12 formats "9:05 AM".
func Clock12(hour, minute int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, period)
}

// HourLabel formats "8 AM", "12 PM".
func HourLabel(hour int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d %s", h, period)
}

// FocusTime formats a countdown as "2 h 5 min" or "45 min".
func FocusTime(minutes int) string {
	minutes = max(0, minutes)
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%d h %d min", h, minutes%60)
	}
	return fmt.Sprintf("%d min", minutes)
}

// Duration formats a meeting length as "30 m", "1 h" or "1 h 30 m".
func Duration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d m", minutes)
	}
	if m := minutes % 60; m > 0 {
		return fmt.Sprintf("%d h %d m", minutes/60, m)
	}
	return fmt.Sprintf("%d h", minutes/60)
}

// SplitTitle breaks a title over two lines of at most width runes, on a
// space when possible. The second line is cut with "..." past 2*width.
func SplitTitle(title string, width int) (string, string) {
	r := []rune(title)
	if len(r) <= width {
		return title, ""
	}
	at := -1
	for i := width - 1; i > 0; i-- {
		if r[i] == ' ' {
			at = i
			break
		}
	}
	if at == -1 {
		at = width
	}
	line1 := string(r[:at])
	rest := []rune(strings.TrimSpace(string(r[at:])))
	if len(rest) > width {
		rest = append(rest[:width-3], []rune("...")...)
	}
	return line1, string(rest)
}

// Truncate cuts s to n runes, ending in "..." when shortened.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
