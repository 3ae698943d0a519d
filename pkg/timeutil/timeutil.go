// Package timeutil provides UTC calendar-date helpers and an injectable clock.
// Streak and bonus-window logic work on UTC calendar dates, never on local time.
package timeutil

import (
	"sync"
	"time"
)

// DateLayout is the wire/storage format of a calendar date.
const DateLayout = "2006-01-02"

// Clock provides the current UTC instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant until moved. Used by tests.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}

// AddDays moves the clock forward by n calendar days.
func (c *FixedClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}

// Date creates a UTC midnight for the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay truncates t to 00:00:00 UTC of its UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsSameDay checks if two instants fall on the same UTC calendar date.
func IsSameDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// DaysBetween returns the signed number of UTC calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	d := StartOfDay(t2).Sub(StartOfDay(t1))
	return int(d.Hours() / 24)
}

// FormatDate formats t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Within reports whether t lies in the closed interval [start, end].
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
