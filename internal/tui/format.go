package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// formatClock renders seconds as m:ss, or h:mm:ss from one hour up.
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// parseDuration parses the duration field. An empty field is valid and
// means nothing to apply.
func parseDuration(raw string) (seconds int, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%q is not a whole number of seconds", raw)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("duration must not be negative")
	}
	return n, true, nil
}
