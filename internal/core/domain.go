package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type (
	// Entry is one logged work session. Year and Month are always derived
	// from Date and exist only for querying.
	Entry struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Date        string    `json:"date"` // YYYY-MM-DD, local
		StartTime   string    `json:"startTime"`
		EndTime     string    `json:"endTime"`
		Hours       Hours     `json:"hours"`
		Year        int       `json:"year"`
		Month       int       `json:"month"` // 1-12
		Notes       string    `json:"notes,omitempty"`
		IsOvernight bool      `json:"isOvernight,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Summary is the aggregate total for one user in one calendar month.
	Summary struct {
		TotalHours Hours `json:"totalHours"`
	}

	// SummaryKey identifies a summary document.
	SummaryKey struct {
		YearMonth string // YYYY-MM
		UserID    string
	}

	User struct {
		UID         string    `json:"uid"`
		DisplayName string    `json:"displayName,omitempty"`
		Email       string    `json:"email,omitempty"`
		Role        string    `json:"role"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidYearMonth = errors.New("invalid year-month")
	ErrEmptyUserID      = errors.New("empty user id")
	ErrNotesTooLong     = errors.New("notes too long (max 500 characters)")
)

var yearMonthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// YearMonthOf derives the YYYY-MM key from an entry date. It returns ""
// when the date is missing or unparsable, so a malformed record
// contributes to no summary.
func YearMonthOf(date string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return ""
	}
	return t.Format("2006-01")
}

// MonthKey builds the YYYY-MM key for a year and month.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParseYearMonth validates a YYYY-MM string and returns its parts.
func ParseYearMonth(s string) (year, month int, err error) {
	if !yearMonthPattern.MatchString(s) {
		return 0, 0, ErrInvalidYearMonth
	}
	year, _ = strconv.Atoi(s[:4])
	month, _ = strconv.Atoi(s[5:])
	if month < 1 || month > 12 {
		return 0, 0, ErrInvalidYearMonth
	}
	return year, month, nil
}

// Derive recomputes Hours, Year and Month from Date, StartTime, EndTime
// and IsOvernight. It is called on every create and update so the derived
// fields can never drift from the date and clock times.
func (e *Entry) Derive() error {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(e.Date))
	if err != nil {
		return ErrInvalidDate
	}
	e.Date = t.Format("2006-01-02")
	e.Year = t.Year()
	e.Month = int(t.Month())

	hours, err := HoursBetween(e.StartTime, e.EndTime, e.IsOvernight)
	if err != nil {
		return err
	}
	e.Hours = hours
	return nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return ErrInvalidDate
	}
	if _, err := parseClock(e.StartTime); err != nil {
		return err
	}
	if _, err := parseClock(e.EndTime); err != nil {
		return err
	}
	if e.Hours < 0 || e.Hours > MaxEntryHours {
		return ErrInvalidHours
	}
	if len(e.Notes) > 500 {
		return ErrNotesTooLong
	}
	return nil
}

// Key returns the summary key this entry contributes to.
func (e Entry) Key() SummaryKey {
	return SummaryKey{YearMonth: MonthKey(e.Year, e.Month), UserID: e.UserID}
}
