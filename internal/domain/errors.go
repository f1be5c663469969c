package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a product has no stored on-hand record.
	ErrNotFound = errors.New("inventory item not found")
	// ErrInvalidNeeds is returned for needs updates that violate profile invariants.
	ErrInvalidNeeds = errors.New("invalid needs update")
	// ErrNoSources is returned when an upload carries no export file.
	ErrNoSources = errors.New("at least one source file is required")
)

// FormatError rejects a source file before it reaches the reconciler.
type FormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported source file %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("unsupported source file %s: %s", e.File, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IngestionError reports a schema-level problem with one source.
type IngestionError struct {
	Source SourceKind
	File   string
	Column string
	Row    int
	Reason string
}

func (e *IngestionError) Error() string {
	msg := fmt.Sprintf("%s source", e.Source)
	if e.File != "" {
		msg += " " + e.File
	}
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	return msg + ": " + e.Reason
}

// DiagnosticKind classifies a non-fatal finding of a run.
type DiagnosticKind string

const (
	DiagnosticParseWarning  DiagnosticKind = "parse_warning"
	DiagnosticConfigDefault DiagnosticKind = "config_default_applied"
	DiagnosticNegativeStock DiagnosticKind = "negative_stock"
)

// Diagnostic carries the row/column context of a recovered problem.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Source  SourceKind     `json:"source,omitempty"`
	File    string         `json:"file,omitempty"`
	Row     int            `json:"row,omitempty"`
	Column  string         `json:"column,omitempty"`
	Value   string         `json:"value,omitempty"`
	Key     ProductKey     `json:"key"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Row > 0 {
		return fmt.Sprintf("%s %s:%d %s: %s", d.Kind, d.File, d.Row, d.Column, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Kind, d.Key, d.Message)
}
