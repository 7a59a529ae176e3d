// Package outcome classifies free-form execution reports by their explicit
// OUTCOME marker line.
package outcome

import "strings"

// Kind is the classified result of an execution report.
type Kind int

const (
	Unknown Kind = iota
	Complete
	Continue
	Blocked
)

var kindNames = [...]string{"unknown", "complete", "continue", "blocked"}

func (k Kind) String() string {
	if k < Unknown || k > Blocked {
		return "unknown"
	}
	return kindNames[k]
}

// Result is a classification with the optional reason given after the marker.
type Result struct {
	Kind   Kind
	Reason string
	// Line is the 1-based line the marker was found on, or 0.
	Line int
}

const prefix = "OUTCOME: "

var markers = map[string]Kind{
	"COMPLETE": Complete,
	"CONTINUE": Continue,
	"BLOCKED":  Blocked,
}

// Classify scans text for marker lines of the form
//
//	OUTCOME: COMPLETE
//	OUTCOME: BLOCKED - waiting on credentials
//
// Leading and trailing whitespace on the line is ignored; nothing else is.
// Lines inside fenced code blocks are skipped. A report with no marker, or
// with markers of different kinds, is Unknown. Repeated markers of the same
// kind keep the first reason.
func Classify(text string) Result {
	var (
		found  Result
		fenced bool
		lineNo int
	)
	// No line length cap.
	for raw := range strings.Lines(text) {
		lineNo++
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		kind, reason, ok := parseMarker(line)
		if !ok {
			continue
		}
		if found.Kind == Unknown {
			found = Result{Kind: kind, Reason: reason, Line: lineNo}
			continue
		}
		if found.Kind != kind {
			return Result{}
		}
	}
	return found
}

// parseMarker reports whether line is exactly a marker, optionally followed
// by " - reason".
func parseMarker(line string) (Kind, string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return Unknown, "", false
	}
	word, reason, hasReason := strings.Cut(rest, " - ")
	kind, ok := markers[word]
	if !ok {
		return Unknown, "", false
	}
	if hasReason {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return Unknown, "", false
		}
	}
	return kind, reason, true
}
