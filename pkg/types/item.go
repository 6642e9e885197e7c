package types

import (
	"sort"
	"time"
)

// Item is one record to update in the target application.
type Item struct {
	// ID is the identifier typed into the catalog search (e.g. a SKU).
	ID         string            `json:"id" yaml:"id" validate:"required,max=100,searchable"`
	Name       string            `json:"name" yaml:"name"`
	Brand      string            `json:"brand,omitempty" yaml:"brand,omitempty"`
	Model      string            `json:"model,omitempty" yaml:"model,omitempty"`
	Family     string            `json:"family,omitempty" yaml:"family,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	// Fields, when set, are written as-is instead of generated content.
	Fields Fields `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Attr returns the named attribute or an empty string.
func (i Item) Attr(key string) string {
	if i.Attributes == nil {
		return ""
	}
	return i.Attributes[key]
}

// Fields maps editor field names to the text written into them.
type Fields map[string]string

// Keys returns field names in a stable order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StepResult is the outcome of one workflow step.
type StepResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Strategy string        `json:"strategy,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FieldError records a field that could not be written.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ItemResult is the terminal outcome of processing one item. It is built
// once and never mutated afterwards.
type ItemResult struct {
	ItemID         string        `json:"item_id"`
	Success        bool          `json:"success"`
	StepsCompleted []string      `json:"steps_completed"`
	Steps          []StepResult  `json:"steps,omitempty"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Error          string        `json:"error,omitempty"`
	FieldsUpdated  []string      `json:"fields_updated,omitempty"`
	FieldErrors    []FieldError  `json:"field_errors,omitempty"`
	Screenshot     string        `json:"screenshot,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`

	// Err keeps the typed cause for errors.Is checks; it is not serialized.
	Err error `json:"-"`
}

// ErrorRecord is one entry of BatchStats.Errors.
type ErrorRecord struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// BatchStats aggregates the outcome of a batch. Processed counts successful
// items and Failed counts failed ones.
type BatchStats struct {
	RunID         string        `json:"run_id"`
	Total         int           `json:"total"`
	Processed     int           `json:"processed"`
	Failed        int           `json:"failed"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time,omitempty"`
	Stopped       bool          `json:"stopped"`
	EventsDropped int           `json:"events_dropped"`
	Errors        []ErrorRecord `json:"errors"`
}

// Attempted returns the number of items that reached a terminal result.
func (s BatchStats) Attempted() int {
	return s.Processed + s.Failed
}

// Elapsed returns the batch duration so far, or the final duration once
// EndTime is set.
func (s BatchStats) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s BatchStats) Clone() BatchStats {
	c := s
	if s.Errors != nil {
		c.Errors = make([]ErrorRecord, len(s.Errors))
		copy(c.Errors, s.Errors)
	}
	return c
}
