package shared

import (
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student. The platform issues opaque string IDs,
// so only emptiness is checked.
type StudentID string

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if sid.IsEmpty() {
		return "", ErrEmptyStudentID
	}
	return sid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent is a score or attainment on the 0–100 scale.
type Percent float64

const (
	MinPercent Percent = 0
	MaxPercent Percent = 100
)

// IsValid checks if the value is within [0, 100].
func (p Percent) IsValid() bool {
	return !math.IsNaN(float64(p)) && p >= MinPercent && p <= MaxPercent
}

// Clamp forces the value into [0, 100].
func (p Percent) Clamp() Percent {
	switch {
	case math.IsNaN(float64(p)), p < MinPercent:
		return MinPercent
	case p > MaxPercent:
		return MaxPercent
	default:
		return p
	}
}

// Float64 returns the underlying value.
func (p Percent) Float64() float64 {
	return float64(p)
}

// Round2 rounds to two decimal places, the precision stored for attainment.
func (p Percent) Round2() Percent {
	return Percent(math.Round(float64(p)*100) / 100)
}
