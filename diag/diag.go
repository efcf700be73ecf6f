// Package diag collects compiler diagnostics in emission order.
package diag

import (
	"fmt"
	"strings"
	"sync"
)

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

// Location points into a source unit. Line and Column are 1-based;
// zero means unknown.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	switch {
	case l.Line == 0 && l.File == "":
		return "-"
	case l.Line == 0:
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single message reported by a toolchain.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

// Collector accumulates diagnostics for one compile. It is safe for
// concurrent use; Items preserves the order in which diagnostics were
// reported.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Errorf reports an error-severity diagnostic at loc.
func (c *Collector) Errorf(loc Location, format string, args ...any) {
	c.Report(Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Location: loc})
}

// Warningf reports a warning-severity diagnostic at loc.
func (c *Collector) Warningf(loc Location, format string, args ...any) {
	c.Report(Diagnostic{Severity: Warning, Message: fmt.Sprintf(format, args...), Location: loc})
}

// Items returns a copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HasErrors reports whether any diagnostic has error severity.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Severity >= Error {
			return true
		}
	}
	return false
}

// Join renders diagnostics one per line as "location: message".
func Join(items []Diagnostic) string {
	var sb strings.Builder
	for i, d := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.Location.String())
		sb.WriteString(": ")
		sb.WriteString(d.Message)
	}
	return sb.String()
}
