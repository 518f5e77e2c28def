// Package timegrid produces the fixed universe of bookable time labels.
package timegrid

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotsPerDay is the size of the hourly grid.
const SlotsPerDay = 24

// AllTimes returns the ordered canonical labels "00:00" through "23:00".
func AllTimes() []string {
	labels := make([]string, 0, SlotsPerDay)
	for h := 0; h < SlotsPerDay; h++ {
		labels = append(labels, fmt.Sprintf("%02d:00", h))
	}
	return labels
}

// DefaultWorkingHours returns the fallback open-hour range used when a
// company has not configured explicit hours: 09:00 through 21:00 inclusive.
func DefaultWorkingHours() []string {
	var labels []string
	for _, t := range AllTimes() {
		h, _ := HourOf(t)
		if h >= 9 && h <= 21 {
			labels = append(labels, t)
		}
	}
	return labels
}

// ValidLabel reports whether s is a member of the hourly grid.
func ValidLabel(s string) bool {
	_, err := HourOf(s)
	return err == nil
}

// HourOf parses the hour component of a grid label.
func HourOf(label string) (int, error) {
	parts := strings.Split(label, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || parts[1] != "00" {
		return 0, fmt.Errorf("invalid time label: %q", label)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h >= SlotsPerDay {
		return 0, fmt.Errorf("invalid time label: %q", label)
	}
	return h, nil
}
