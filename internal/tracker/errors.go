package tracker

import "fmt"

// malformedReportError signals a hardware report that is missing required
// fields or references unknown slots. Mapped to 400 at the HTTP boundary.
type malformedReportError struct{ msg string }

func (e malformedReportError) Error() string { return "malformed report: " + e.msg }

func errMalformedReport(format string, args ...any) error {
	return malformedReportError{msg: fmt.Sprintf(format, args...)}
}

// MalformedReport builds a malformed-report error carrying msg.
func MalformedReport(msg string) error {
	return malformedReportError{msg: msg}
}

// IsMalformedReport reports whether err indicates an invalid hardware report.
func IsMalformedReport(err error) bool {
	_, ok := err.(malformedReportError)
	return ok
}
