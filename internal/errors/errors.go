package errors

import (
	"fmt"
	"sync"
)

// Severity represents the severity of a collected diagnostic
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single error or warning raised while running a pipeline
type Diagnostic struct {
	Severity Severity
	Asset    string
	Message  string
	Err      error
}

// String renders the diagnostic the way it is surfaced in pipeline results
func (d Diagnostic) String() string {
	msg := d.Message
	if d.Err != nil {
		if msg == "" {
			msg = FormatError(d.Err)
		} else {
			msg = fmt.Sprintf("%s: %s", msg, FormatError(d.Err))
		}
	}
	if d.Asset != "" {
		return d.Asset + ": " + msg
	}
	return msg
}

// Collector collects errors and warnings in the order they are reported
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new diagnostic collector
func NewCollector() *Collector {
	return &Collector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// AddError records an error for asset. Nil errors are ignored.
func (c *Collector) AddError(asset string, err error) {
	if err == nil {
		return
	}
	c.add(Diagnostic{Severity: SeverityError, Asset: asset, Err: err})
}

// AddWarning records a warning for asset
func (c *Collector) AddWarning(asset, format string, args ...interface{}) {
	c.add(Diagnostic{Severity: SeverityWarning, Asset: asset, Message: fmt.Sprintf(format, args...)})
}

func (c *Collector) add(d Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// All returns a copy of every collected diagnostic
func (c *Collector) All() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// Errors returns the rendered error messages
func (c *Collector) Errors() []string {
	return c.render(SeverityError)
}

// Warnings returns the rendered warning messages
func (c *Collector) Warnings() []string {
	return c.render(SeverityWarning)
}

func (c *Collector) render(severity Severity) []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]string, 0)
	for _, d := range c.diagnostics {
		if d.Severity == severity {
			out = append(out, d.String())
		}
	}
	return out
}

// HasErrors returns true if any error was collected
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
