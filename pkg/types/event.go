package types

import "time"

// EventType defines the type of event emitted by the batch orchestrator.
type EventType string

const (
	EventTypeLog          EventType = "log"           // EventTypeLog carries a log entry mirrored from the worker.
	EventTypeProgress     EventType = "progress"      // EventTypeProgress reports the step about to run for an item.
	EventTypeItemComplete EventType = "item_complete" // EventTypeItemComplete carries the terminal result of one item.
	EventTypeError        EventType = "error"         // EventTypeError reports an item failure with diagnostic detail.
	EventTypeBatchStart   EventType = "batch_start"   // EventTypeBatchStart indicates the worker started a batch.
	EventTypeBatchEnd     EventType = "batch_end"     // EventTypeBatchEnd carries the final stats once the worker exits.
	EventTypeStateChange  EventType = "state_change"  // EventTypeStateChange indicates an orchestrator state transition.
)

// LogLevel is the severity of a LogEntry.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogSuccess LogLevel = "success"
)

// LogEntry is a single log line delivered to callers.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// Progress announces the step about to execute for an item.
type Progress struct {
	ItemID      string `json:"item_id"`
	StepIndex   int    `json:"step_index"`
	TotalSteps  int    `json:"total_steps"`
	Description string `json:"description"`
}

// ErrorInfo describes an item failure.
type ErrorInfo struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
	Trace  string `json:"trace,omitempty"`
}

// StateChange describes an orchestrator state transition.
type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Event represents an event emitted by the orchestrator. Exactly one of the
// payload pointers is set, matching Type.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id,omitempty"`
	Time  time.Time `json:"time"`

	Log      *LogEntry    `json:"log,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
	Result   *ItemResult  `json:"result,omitempty"`
	Error    *ErrorInfo   `json:"error,omitempty"`
	Stats    *BatchStats  `json:"stats,omitempty"`
	State    *StateChange `json:"state,omitempty"`
}

func newEvent(t EventType, runID string) *Event {
	return &Event{Type: t, RunID: runID, Time: time.Now()}
}

// NewLogEvent creates a log event.
func NewLogEvent(runID string, level LogLevel, message string) *Event {
	e := newEvent(EventTypeLog, runID)
	e.Log = &LogEntry{Timestamp: e.Time, Level: level, Message: message}
	return e
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(runID string, p Progress) *Event {
	e := newEvent(EventTypeProgress, runID)
	e.Progress = &p
	return e
}

// NewItemCompleteEvent creates an item completion event.
func NewItemCompleteEvent(runID string, result ItemResult) *Event {
	e := newEvent(EventTypeItemComplete, runID)
	e.Result = &result
	return e
}

// NewErrorEvent creates an item error event.
func NewErrorEvent(runID, itemID string, err error, trace string) *Event {
	e := newEvent(EventTypeError, runID)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.Error = &ErrorInfo{ItemID: itemID, Error: msg, Trace: trace}
	return e
}

// NewBatchStartEvent creates a batch start event.
func NewBatchStartEvent(runID string, stats BatchStats) *Event {
	e := newEvent(EventTypeBatchStart, runID)
	e.Stats = &stats
	return e
}

// NewBatchEndEvent creates a batch end event carrying final stats.
func NewBatchEndEvent(runID string, stats BatchStats) *Event {
	e := newEvent(EventTypeBatchEnd, runID)
	e.Stats = &stats
	return e
}

// NewStateChangeEvent creates a state transition event.
func NewStateChangeEvent(runID, from, to string) *Event {
	e := newEvent(EventTypeStateChange, runID)
	e.State = &StateChange{From: from, To: to}
	return e
}

// IsTerminal reports whether the event marks the end of a batch.
func (e *Event) IsTerminal() bool {
	return e.Type == EventTypeBatchEnd
}

// IsItemEvent reports whether the event concerns a single item.
func (e *Event) IsItemEvent() bool {
	return e.Type == EventTypeProgress || e.Type == EventTypeItemComplete || e.Type == EventTypeError
}

// ItemID returns the item the event refers to, if any.
func (e *Event) ItemID() string {
	switch {
	case e.Progress != nil:
		return e.Progress.ItemID
	case e.Result != nil:
		return e.Result.ItemID
	case e.Error != nil:
		return e.Error.ItemID
	}
	return ""
}
