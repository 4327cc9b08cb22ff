// Package telemetry defines the typed events a coverage run publishes to
// status-server clients. Every event embeds Event so clients can switch on
// the "type" field before decoding the rest.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventProgress  EventType = "progress"
	EventLog       EventType = "log"
	EventSummary   EventType = "summary"
)

// Run states, in the order a successful run moves through them.
const (
	StateBooting = "BOOTING"
	StateLoading = "LOADING_CATALOG"
	StateRunning = "RUNNING"
	StateWriting = "WRITING"
	StateDone    = "DONE"
	StateFailed  = "FAILED"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the run moves between states.
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// Progress reports the position of the time-window driver.
type Progress struct {
	Event
	Process      int     `json:"process"`
	Step         int     `json:"step"`
	Steps        int     `json:"steps"`
	SimTime      string  `json:"sim_time"`
	Percent      float64 `json:"percent"`
	StepCells    int     `json:"step_cells"`
	CoveredCells int     `json:"covered_cells"`
	Failures     int     `json:"failures"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Summary is published once when the output file has been written.
type Summary struct {
	Event
	Process      int    `json:"process"`
	Output       string `json:"output"`
	Steps        int    `json:"steps"`
	CoveredCells int    `json:"covered_cells"`
	MaxCount     int    `json:"max_count"`
	Failures     int    `json:"failures"`
}
