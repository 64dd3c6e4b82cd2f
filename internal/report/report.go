// Package report collects diagnostics produced across the preprocess,
// parse, validate, elaborate, and check stages, and renders them the way
// a build tool's own console output would: plain fmt.Fprintf lines, no
// external logging library, gated by a Verbose/Quiet switch set once per
// run.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Severity orders from least to most urgent, matching §7's
// {debug, info, warning, error} scale.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one diagnostic: a severity, a slash-separated category path
// (e.g. "elaborate/registers"), a message, and an optional source
// location.
type Entry struct {
	Severity Severity
	Category string
	Message  string
	File     string
	Line     int
}

func (e Entry) String() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s:%d: [%s] %s", e.Severity, e.File, e.Line, e.Category, e.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Severity, e.Category, e.Message)
}

// Report accumulates Entries plus per-stage timings for one build.
type Report struct {
	Verbose bool
	Quiet   bool
	Out     io.Writer

	Entries []Entry
	Timing  []StageTiming
}

// New creates a Report that writes to os.Stderr.
func New() *Report {
	return &Report{Out: os.Stderr}
}

func (r *Report) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stderr
}

// Add records e and, unless Quiet (or the entry is Debug without
// Verbose), prints it immediately.
func (r *Report) Add(e Entry) {
	r.Entries = append(r.Entries, e)
	if r.Quiet {
		return
	}
	if e.Severity == Debug && !r.Verbose {
		return
	}
	fmt.Fprintln(r.out(), e.String())
}

// Debugf, Infof, Warnf, Errorf are convenience wrappers over Add.
func (r *Report) Debugf(category, file string, line int, format string, args ...interface{}) {
	r.Add(Entry{Severity: Debug, Category: category, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Infof(category, file string, line int, format string, args ...interface{}) {
	r.Add(Entry{Severity: Info, Category: category, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Warnf(category, file string, line int, format string, args ...interface{}) {
	r.Add(Entry{Severity: Warning, Category: category, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Errorf(category, file string, line int, format string, args ...interface{}) {
	r.Add(Entry{Severity: Error, Category: category, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any Error-severity entry was recorded.
func (r *Report) HasErrors() bool {
	for _, e := range r.Entries {
		if e.Severity == Error {
			return true
		}
	}
	return false
}

// StageTiming records how long one named pipeline stage took, in
// nanoseconds (durations are passed in rather than measured here;
// BuildProject measures each stage with time.Now and time.Since).
type StageTiming struct {
	Stage string
	Nanos int64
}

// RecordTiming appends one stage timing to the report, in call order.
func (r *Report) RecordTiming(stage string, nanos int64) {
	r.Timing = append(r.Timing, StageTiming{Stage: stage, Nanos: nanos})
}

// SortedEntries returns Entries ordered by (File, Line, Severity), for
// deterministic reporting regardless of the concurrency-free but
// declaration-order-dependent sequence they were recorded in.
func (r *Report) SortedEntries() []Entry {
	out := make([]Entry, len(r.Entries))
	copy(out, r.Entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Severity > out[j].Severity
	})
	return out
}
