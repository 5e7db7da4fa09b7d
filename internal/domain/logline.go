package domain

import "strings"

// Severity is the inferred importance of a log line.
type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// LogLine is a single opaque log line from the remote process.
type LogLine string

// Severity infers the line's severity from its wording. It is derived on
// demand and never stored.
func (l LogLine) Severity() Severity {
	msg := strings.ToLower(string(l))
	switch {
	case strings.Contains(msg, "error"), strings.Contains(msg, "failed"):
		return SeverityError
	case strings.Contains(msg, "success"), strings.Contains(msg, "bought"), strings.Contains(msg, "sold"):
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}
