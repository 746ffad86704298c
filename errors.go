// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"errors"
	"fmt"
)

// Hard errors. The codec is deliberately tolerant (§7): these are the only
// kinds that abort a decode outright, because continuing would make
// subsequent parsing nonsense.
var (
	// ErrInvalidEnvelope is returned when the outer archive structure
	// itself can't be read.
	ErrInvalidEnvelope = errors.New("cap: invalid envelope")

	// ErrUnknownEntry is returned for an envelope entry whose name is
	// neither a standard component filename nor a custom-component filename
	// (see isCustomEntryName).
	ErrUnknownEntry = errors.New("cap: unknown envelope entry")

	// ErrUnsupportedVersion is returned when Header's (major, minor) is
	// not one of {2.1, 2.2, 2.3}.
	ErrUnsupportedVersion = errors.New("cap: unsupported format version")

	// ErrTruncatedComponent is returned when a reader would advance past
	// a component's declared size.
	ErrTruncatedComponent = errors.New("cap: truncated component")

	// ErrMalformedHex is returned when a raw_modified string fails
	// annotation-stripped hex normalization (§4.6).
	ErrMalformedHex = errors.New("cap: malformed raw_modified hex")

	// ErrNegativeAdvance is returned when a reader is asked to read a
	// negative-length span. A past-end read returns ErrTruncatedComponent.
	ErrNegativeAdvance = errors.New("cap: negative-length read")
)

// DiagnosticKind classifies a warning-level finding (§7). Unlike the hard
// errors above, these never abort a decode; they accumulate on the
// CapFile/ExpFile being built and are surfaced in the intermediate form.
type DiagnosticKind string

// Warning-level diagnostic kinds.
const (
	DiagTagMismatch          DiagnosticKind = "TagMismatch"
	DiagInconsistentSize     DiagnosticKind = "InconsistentSize"
	DiagForbiddenInstruction DiagnosticKind = "ForbiddenInstruction"
	DiagInvariantViolation   DiagnosticKind = "InvariantViolation"
)

// Diagnostic is one warning-level finding recorded during decode.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
}

// Diagnostics accumulates warning-level findings in the order they were
// observed. The coordinator and every component decoder append to a shared
// instance instead of failing the decode (§7 policy: "surfaces warnings and
// continues wherever a field can still be read").
type Diagnostics struct {
	entries []Diagnostic
}

// Warn records a warning-level finding.
func (d *Diagnostics) Warn(kind DiagnosticKind, component, format string, args ...any) {
	d.entries = append(d.entries, Diagnostic{
		Kind:      kind,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	})
}

// All returns every recorded diagnostic, in recording order.
func (d *Diagnostics) All() []Diagnostic {
	return d.entries
}

// Len reports how many diagnostics have been recorded.
func (d *Diagnostics) Len() int {
	return len(d.entries)
}
