// Package projector derives display values from an analysis result. Every function is
// pure and total: missing or malformed fields degrade to placeholders, and the result is
// never modified.
package projector

import (
	"strings"

	"github.com/pharmaguard-client/internal/domain"
)

// Color is a display color in #rrggbb form.
type Color string

// Risk colors.
const (
	Green Color = "#16a34a"
	Amber Color = "#f59e0b"
	Red   Color = "#dc2626"
	Gray  Color = "#6b7280"
)

// Placeholders for absent fields.
const (
	NotAvailable = "N/A"
	UnknownLabel = "Unknown"
)

// Risk bar fill levels.
const (
	BarLow    = 30
	BarMedium = 60
	BarHigh   = 90
)

// RiskColor maps a risk label to a color by case-insensitive substring, checking
// "safe", then "adjust", then "toxic" or "ineffective". Anything else is gray.
func RiskColor(label string) Color {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "safe"):
		return Green
	case strings.Contains(l, "adjust"):
		return Amber
	case strings.Contains(l, "toxic"), strings.Contains(l, "ineffective"):
		return Red
	default:
		return Gray
	}
}

// RiskBarPercent maps a risk label to a bar fill. Only the exact labels "Safe" and
// "Adjust Dosage" lower the bar; every other label, recognized or not, fills it to 90.
func RiskBarPercent(label string) int {
	switch label {
	case domain.RiskSafe:
		return BarLow
	case domain.RiskAdjustDosage:
		return BarMedium
	default:
		return BarHigh
	}
}

// Fallback returns *value, or placeholder when value is nil.
func Fallback(value *string, placeholder string) string {
	if value == nil {
		return placeholder
	}
	return *value
}

// Expansion is the user-toggled detail flag. The zero value is collapsed.
type Expansion struct {
	expanded bool
}

// Toggle flips the flag and returns the new value.
func (e *Expansion) Toggle() bool {
	e.expanded = !e.expanded
	return e.expanded
}

// Expanded reports whether secondary detail is shown.
func (e *Expansion) Expanded() bool {
	return e.expanded
}
