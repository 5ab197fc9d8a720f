package sidevalue

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is a single message reported while computing a value.
type Diagnostic struct {
	Severity Severity
	Message  string
}

func compareDiagnostics(a, b Diagnostic) int {
	if c := cmp.Compare(a.Severity, b.Severity); c != 0 {
		return c
	}
	return cmp.Compare(a.Message, b.Message)
}

// Diagnostics is a side value holding a set of diagnostics. Combining two Diagnostics yields the
// sorted union, so combination is commutative and associative.
type Diagnostics struct {
	items []Diagnostic
}

var _ SideValue = Diagnostics{}

// NewDiagnostics creates a diagnostics payload.
func NewDiagnostics(items ...Diagnostic) Diagnostics {
	return Diagnostics{items: normalize(slices.Clone(items))}
}

func normalize(items []Diagnostic) []Diagnostic {
	slices.SortFunc(items, compareDiagnostics)
	return slices.Compact(items)
}

// Combine implements SideValue.
func (d Diagnostics) Combine(other SideValue) SideValue {
	o, ok := other.(Diagnostics)
	if !ok {
		return d
	}
	merged := make([]Diagnostic, 0, len(d.items)+len(o.items))
	merged = append(merged, d.items...)
	merged = append(merged, o.items...)
	return Diagnostics{items: normalize(merged)}
}

// Items returns a copy of the diagnostics in canonical order.
func (d Diagnostics) Items() []Diagnostic { return slices.Clone(d.items) }

// Len returns the number of diagnostics.
func (d Diagnostics) Len() int { return len(d.items) }

// HasErrors reports whether any diagnostic has error severity.
func (d Diagnostics) HasErrors() bool {
	return slices.ContainsFunc(d.items, func(x Diagnostic) bool { return x.Severity == SeverityError })
}

// String returns a string representation for debugging.
func (d Diagnostics) String() string {
	parts := make([]string, len(d.items))
	for i, x := range d.items {
		parts[i] = x.Severity.String() + ": " + x.Message
	}
	return "diagnostics{" + strings.Join(parts, "; ") + "}"
}
