package assistant

// EventType identifies an orchestrator event.
type EventType string

const (
	// EventStatus carries a new status line.
	EventStatus EventType = "status.changed"
	// EventLogAppended carries a new session log entry.
	EventLogAppended EventType = "log.appended"
	// EventRunningChanged is sent when the session starts or stops.
	EventRunningChanged EventType = "running.changed"
	// EventVoiceState carries a voice listener state change.
	EventVoiceState EventType = "voice.state"
)

// Event is delivered on Orchestrator.Events.
type Event struct {
	Type    EventType
	Status  string
	Entry   Entry
	Running bool
	Voice   string
}
