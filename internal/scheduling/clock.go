package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

// MinuteOfDay is a time of day expressed as minutes since midnight.
// Schedule templates store their window bounds in this form.
type MinuteOfDay int

// ParseClock parses "HH:MM" into a MinuteOfDay. Seconds, if present,
// are ignored ("09:00:00" parses as 09:00).
func ParseClock(s string) (MinuteOfDay, error) {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		s = s[:5]
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("scheduling: invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: clock value %q out of range", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

// Clock renders the minute as "HH:MM".
func (m MinuteOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) String() string { return m.Clock() }
