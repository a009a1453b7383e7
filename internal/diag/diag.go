// Package diag collects compiler diagnostics without aborting the pass
// that produced them. It plays the role the teacher's VM.errcode /
// Response.deviceErr sentinel fields play for the interpreter: a
// terminal condition that is recorded rather than panicked, and that a
// caller consults after the fact.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Severity classifies a diagnostic. Validation failures and
// unsupported-lowering records are Error; nothing in this package ever
// produces Warning today, but the level exists so that Record.String
// labels the two differently and a future pass (e.g. a redundant-phi
// warning) has somewhere to go without a new type.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Record is one accumulated diagnostic. Subject is an opaque reference
// to whatever produced it (a *lir.Instruction, a *hir.Node, a block
// id) formatted with %v at print time so this package stays free of
// import cycles on lir/hir.
type Record struct {
	Severity Severity
	Message  string
	Subject  any
	Err      error
}

func (r Record) String() string {
	if r.Subject != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Severity, r.Message, r.Subject)
	}
	return fmt.Sprintf("%s: %s", r.Severity, r.Message)
}

// List accumulates diagnostics for one compilation. It is owned by the
// lir.Factory; the translator records into it, and callers read it
// back after the fact through HasErrors and Records.
type List struct {
	records []Record
}

// Errorf appends a formatted error diagnostic and returns it wrapped
// with a stack trace, mirroring golint-fixer-exp's use of
// errors.Errorf at the point a diagnostic is raised.
func (l *List) Errorf(subject any, format string, args ...any) error {
	err := errors.Errorf(format, args...)
	l.records = append(l.records, Record{Severity: Error, Message: err.Error(), Subject: subject, Err: err})
	return err
}

// Wrap records an error returned by a collaborator, preserving its
// stack via errors.WithStack, and returns it so callers can choose to
// propagate or swallow it.
func (l *List) Wrap(subject any, err error) error {
	if err == nil {
		return nil
	}
	wrapped := errors.WithStack(err)
	l.records = append(l.records, Record{Severity: Error, Message: err.Error(), Subject: subject, Err: wrapped})
	return wrapped
}

// Warnf appends a warning diagnostic; it never aborts a pass.
func (l *List) Warnf(subject any, format string, args ...any) {
	l.records = append(l.records, Record{Severity: Warning, Message: fmt.Sprintf(format, args...), Subject: subject})
}

// HasErrors reports whether any Error-severity diagnostic has been
// recorded. No pass in this repository calls it; the translator
// aborts a function by returning the error it records.
func (l *List) HasErrors() bool {
	for _, r := range l.records {
		if r.Severity == Error {
			return true
		}
	}
	return false
}

// Records returns the accumulated diagnostics in emission order.
func (l *List) Records() []Record {
	return l.records
}

// Reset clears all accumulated diagnostics, so that one Factory can
// be reused for an independent compilation. Nothing in this
// repository calls it.
func (l *List) Reset() {
	l.records = nil
}
