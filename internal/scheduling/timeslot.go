package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Incoming time labels arrive in several formats ("09:00-10:00",
// "09:00 - 10:00", "09:00-10:00 AM"). Matching against stored slots uses only
// the leading clock token, zero-padded to "HH:MM".
var leadingClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})`)

// NormalizeTimeLabel extracts the leading "HH:MM" token from a slot label.
// Returns "" when the label does not start with a clock time.
func NormalizeTimeLabel(label string) string {
	m := leadingClock.FindStringSubmatch(label)
	if m == nil {
		return ""
	}
	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return ""
	}
	return fmt.Sprintf("%02d:%s", hour, m[2])
}

// minutesOfDay parses "HH:MM" into minutes since midnight.
func minutesOfDay(hhmm string) (int, error) {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour*60 + minute, nil
}

func formatMinutes(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
