package schema

import (
	"errors"
	"fmt"
	"strings"
)

// WarningKind classifies a non-fatal discrepancy found during a pass.
type WarningKind uint8

// Warning kinds.
const (
	// CapabilityGap is a change the dialect cannot express. It is left out
	// of the executed or generated statements.
	CapabilityGap WarningKind = iota + 1
	// UndeclaredColumn is a live column missing from the declaration,
	// kept because automatic drops are disabled.
	UndeclaredColumn
	// DependencyCycle is a cycle between entity references.
	DependencyCycle
	// RiskyChange is a change that may fail on tables holding data.
	RiskyChange
	// Irreversible is a change whose inverse cannot be generated.
	Irreversible
)

var warningKinds = map[WarningKind]string{
	CapabilityGap:    "capability gap",
	UndeclaredColumn: "undeclared column",
	DependencyCycle:  "dependency cycle",
	RiskyChange:      "risky change",
	Irreversible:     "irreversible",
}

func (k WarningKind) String() string {
	if s, ok := warningKinds[k]; ok {
		return s
	}
	return "unknown"
}

// Warning is a discrepancy an operator may need to resolve manually.
type Warning struct {
	Kind     WarningKind
	Table    string
	Column   string
	Message  string
	Expected string
	Actual   string
}

func (w *Warning) String() string {
	var sb strings.Builder
	sb.WriteString(w.Kind.String())
	sb.WriteString(": ")
	if w.Table != "" {
		sb.WriteString(w.Table)
		if w.Column != "" {
			sb.WriteString(".")
			sb.WriteString(w.Column)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(w.Message)
	if w.Expected != "" || w.Actual != "" {
		fmt.Fprintf(&sb, " (expected %q, actual %q)", w.Expected, w.Actual)
	}
	return sb.String()
}

// Report collects the warnings of one synchronization pass.
type Report struct {
	Warnings []*Warning
}

// HasWarnings returns true if there are any warnings.
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Of returns the warnings of the given kind.
func (r *Report) Of(kind WarningKind) []*Warning {
	var ws []*Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			ws = append(ws, w)
		}
	}
	return ws
}

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	if !r.HasWarnings() {
		return "No issues found"
	}
	var sb strings.Builder
	sb.WriteString("Warnings:\n")
	for _, w := range r.Warnings {
		sb.WriteString("  - ")
		sb.WriteString(w.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *Report) add(w *Warning) {
	r.Warnings = append(r.Warnings, w)
}

// ValidationError represents an inconsistent declared table.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidateTables checks the declared tables for duplicate names and for
// foreign keys referencing unknown columns or tables.
func ValidateTables(tables []*Table) error {
	var (
		errs  []error
		names = make(map[string]*Table, len(tables))
	)
	for _, t := range tables {
		if _, ok := names[strings.ToLower(t.Name)]; ok {
			errs = append(errs, &ValidationError{Table: t.Name, Message: "duplicate table name"})
		}
		names[strings.ToLower(t.Name)] = t
		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if seen[strings.ToLower(c.Name)] {
				errs = append(errs, &ValidationError{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
			}
			seen[strings.ToLower(c.Name)] = true
		}
		for _, fk := range t.ForeignKeys {
			if !seen[strings.ToLower(fk.Column)] {
				errs = append(errs, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key references non-existent column %q", fk.Column)})
			}
		}
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			ref, ok := names[strings.ToLower(fk.RefTable)]
			if !ok {
				errs = append(errs, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key references non-existent table %q", fk.RefTable)})
				continue
			}
			if _, ok := ref.Column(fk.RefColumn); !ok {
				errs = append(errs, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key references non-existent column %s.%s", fk.RefTable, fk.RefColumn)})
			}
		}
	}
	return errors.Join(errs...)
}
