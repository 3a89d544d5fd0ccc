package graph

import "time"

// Backend is the narrow interface to the media framework. It resolves
// logical roles to concrete processing units and supplies the container
// that runs them. The production implementation wraps GStreamer
// (internal/gstgraph); tests use an in-memory fake (graphtest).
type Backend interface {
	// NewContainer creates an empty graph container. The container owns
	// every unit added to it; Close releases them all.
	NewContainer(name string) (Container, error)

	// NewUnit resolves a role to a ready, unattached processing unit.
	// A single probe per call, no retries: callers decide whether to try
	// an alternative role. Returns ErrUnavailableCapability (wrapped) when
	// the capability cannot be instantiated on this host.
	NewUnit(role Role) (Unit, error)
}

// Container is the runtime home of a set of linked units.
type Container interface {
	// Name identifies the container; top-level event sources carry it.
	Name() string

	// Add transfers ownership of a unit to the container.
	Add(u Unit) error

	// Play commands the container to begin active processing. The actual
	// transition may complete asynchronously; runtime failures surface on
	// the event channel.
	Play() error

	// Stop commands the container back to idle. Safe to call when not
	// playing.
	Stop() error

	// Events is the container's asynchronous message channel: errors,
	// end-of-stream, warnings and state transitions from the running
	// units. Closed by Close.
	Events() <-chan Event

	// Close stops the container and releases it together with every unit
	// it owns. Idempotent.
	Close()
}

// Unit is one stage of the processing graph.
type Unit interface {
	// Role returns the role the unit was created for.
	Role() Role

	// Name identifies the unit instance in logs and events.
	Name() string

	// Input returns the unit's input port, or nil if it has none (source).
	Input() Port

	// Output returns the unit's statically-typed output port, or nil if
	// the unit has none (sink) or its output is dynamic (source).
	Output() Port

	// OnOutputAdded registers the handler invoked when a dynamic output
	// port appears after negotiation. Units with static outputs never
	// invoke it. The handler may run on a framework dispatch thread.
	OnOutputAdded(fn func(Port))

	// Release frees the unit. Only for units not yet owned by a container;
	// afterwards the container's Close releases them.
	Release()
}

// Port is a named connection point on a unit.
type Port interface {
	// Name identifies the port within its unit.
	Name() string

	// MediaType is the declared or negotiated media type ("video/x-h264",
	// "application/x-rtp", ...), or empty while unknown.
	MediaType() string

	// Linked reports whether the port already participates in a link.
	Linked() bool

	// Link connects this (output) port to the given input port. Returns
	// ErrLinkIncompatible (wrapped) on media-type mismatch.
	Link(sink Port) error
}

// FrameSource is implemented by sink units that deliver decoded frames to
// the process. The channel closes when the owning container is closed.
type FrameSource interface {
	Frames() <-chan Frame
}

// Frame is one decoded video frame as it leaves the graph.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the sink.
	Seq uint64
	// Timestamp is when the frame left the graph.
	Timestamp time.Time
	// Width in pixels (0 if the backend does not report dimensions).
	Width int
	// Height in pixels.
	Height int
	// Data is the raw frame payload, owned by the receiver.
	Data []byte
	// TraceID is a unique identifier for tracing a frame end to end.
	TraceID string
}
