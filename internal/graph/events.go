package graph

// EventClass classifies an event from a running graph.
type EventClass int

const (
	// ClassError is fatal for the session: a stage cannot proceed.
	ClassError EventClass = iota
	// ClassEndOfStream is orderly completion, not an error.
	ClassEndOfStream
	// ClassWarning is logged and otherwise ignored.
	ClassWarning
	// ClassStateChanged reports a lifecycle transition of a unit or of the
	// container itself. Only container-level transitions are meaningful to
	// the session; per-unit ones are substage noise.
	ClassStateChanged
)

// String returns a human-readable name for the event class.
func (c EventClass) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassEndOfStream:
		return "end-of-stream"
	case ClassWarning:
		return "warning"
	case ClassStateChanged:
		return "state-changed"
	default:
		return "unknown"
	}
}

// Event is one asynchronous message from a running graph. Delivery is
// FIFO per graph with a single consumer (the session run loop).
type Event struct {
	Class EventClass

	// Source names the unit or container that produced the event.
	Source string

	// Message is the human-readable description (errors, warnings).
	Message string

	// Debug carries framework diagnostic detail, when available.
	Debug string

	// OldState and NewState are set for ClassStateChanged.
	OldState string
	NewState string
}
