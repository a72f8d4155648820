package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Date is a calendar date without time of day. It serialises as "2006-01-02"
// and maps to a DATE column. The zero value is stored as NULL.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "2006-01-02" string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// Before reports whether d is strictly before o
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// IsWeekday reports whether d falls Monday through Friday
func (d Date) IsWeekday() bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal(nil)
	}
	return json.Marshal(d.Format(dateLayout))
}

// Value implements the driver.Valuer interface.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Scan implements the sql.Scanner interface.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	}
	return fmt.Errorf("cannot scan %T into Date", value)
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a time of day with minute precision, serialised as "15:04"
// and mapped to a TIME column.
type ClockTime struct {
	Minutes int
}

// NewClockTime builds a ClockTime from hours and minutes
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{Minutes: hour*60 + minute}
}

// ParseClockTime parses "15:04" (seconds, if present, are ignored)
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(clockLayout) {
		s = s[:len(clockLayout)]
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return NewClockTime(t.Hour(), t.Minute()), nil
}

// HoursUntil returns the duration from c to end in hours
func (c ClockTime) HoursUntil(end ClockTime) float64 {
	return float64(end.Minutes-c.Minutes) / 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Minutes/60, c.Minutes%60)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Value implements the driver.Valuer interface.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan implements the sql.Scanner interface.
func (c *ClockTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*c = NewClockTime(v.Hour(), v.Minute())
		return nil
	case []byte:
		parsed, err := ParseClockTime(string(v))
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case string:
		parsed, err := ParseClockTime(v)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into ClockTime", value)
}
