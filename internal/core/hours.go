// Package core provides the timesheet domain types and hour arithmetic.
//
// Hours are stored as int64 hundredths of an hour. All aggregation works
// on integer centihours so repeated delta application stays exact; floats
// appear only at the JSON boundary.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Hours is a duration in hundredths of an hour (7.5h == Hours(750)).
type Hours int64

// MaxEntryHours caps a single entry at one full day.
const MaxEntryHours = Hours(2400)

var (
	ErrInvalidHours   = errors.New("invalid hours")
	ErrInvalidClock   = errors.New("invalid clock time")
	ErrEndBeforeStart = errors.New("end time before start time")
)

// Float returns the decimal hour value for display.
func (h Hours) Float() float64 {
	return float64(h) / 100.0
}

func (h Hours) String() string {
	neg := h < 0
	if neg {
		h = -h
	}
	s := fmt.Sprintf("%d.%02d", int64(h)/100, int64(h)%100)
	if neg {
		return "-" + s
	}
	return s
}

// MarshalJSON emits a plain 2-decimal number, matching the wire shape the
// UI reads.
func (h Hours) MarshalJSON() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hours) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return ErrInvalidHours
	}
	*h = Hours(math.Round(f * 100))
	return nil
}

// HoursFromFloat rounds a decimal hour value to centihours, half away
// from zero.
func HoursFromFloat(f float64) Hours {
	return Hours(math.Round(f * 100))
}

// ParseDecimalHours converts a decimal string to centihours. It accepts
// both dot and comma separators and rounds half-up on the third decimal.
func ParseDecimalHours(s string) (Hours, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidHours
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidHours
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidHours
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidHours
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	h := Hours(iv*100 + frac)
	if h > MaxEntryHours {
		return 0, ErrInvalidHours
	}
	return h, nil
}

// HoursBetween returns the wall-clock duration between two HH:MM clock
// times, rounded to two decimals. With overnight set, the end time is
// taken to fall on the next day.
func HoursBetween(start, end string, overnight bool) (Hours, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	endMin, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	minutes := endMin - startMin
	if overnight {
		minutes += 24 * 60
	}
	if minutes < 0 {
		return 0, ErrEndBeforeStart
	}
	if minutes > 24*60 {
		return 0, ErrInvalidHours
	}
	return Hours(math.Round(float64(minutes) * 100.0 / 60.0)), nil
}

// parseClock converts an HH:MM string to minutes since midnight.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClock
	}
	hh, err := strconv.Atoi(s[:2])
	if err != nil || hh < 0 || hh > 23 {
		return 0, ErrInvalidClock
	}
	mm, err := strconv.Atoi(s[3:])
	if err != nil || mm < 0 || mm > 59 {
		return 0, ErrInvalidClock
	}
	return hh*60 + mm, nil
}
