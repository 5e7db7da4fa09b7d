package analytics

import "github.com/alanyoungcy/tradeconsole/internal/domain"

// DefaultLogTail is the number of log lines shown in the live feed.
const DefaultLogTail = 100

// ClassifiedLine is a log line with its inferred severity.
type ClassifiedLine struct {
	Line     domain.LogLine  `json:"line"`
	Severity domain.Severity `json:"severity"`
}

// Classify infers the severity of one line.
func Classify(line domain.LogLine) ClassifiedLine {
	return ClassifiedLine{Line: line, Severity: line.Severity()}
}

// TailLogs returns the last n lines, newest first.
func TailLogs(lines []domain.LogLine, n int) []ClassifiedLine {
	if n <= 0 {
		n = DefaultLogTail
	}
	start := max(len(lines)-n, 0)
	out := make([]ClassifiedLine, 0, len(lines)-start)
	for i := len(lines) - 1; i >= start; i-- {
		out = append(out, Classify(lines[i]))
	}
	return out
}
