package streamview

import (
	"time"

	"github.com/e7canasta/streamview/internal/graph"
)

// SessionState is the lifecycle state of a viewing session.
type SessionState int

const (
	// StateIdle means no graph exists; the session is ready to start.
	StateIdle SessionState = iota
	// StateConstructing means a graph build is in flight.
	StateConstructing
	// StateNegotiating means the graph is built and spinning up; the
	// deferred source link has not resolved yet.
	StateNegotiating
	// StateActive means frames are flowing.
	StateActive
	// StateStopping means an orderly teardown is in flight.
	StateStopping
	// StateFaulted means a runtime fault ended the session; teardown of
	// the failed graph may still be in flight.
	StateFaulted
)

// String returns a human-readable string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConstructing:
		return "constructing"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Transport is the preferred lower transport for the RTSP source.
type Transport int

const (
	// TransportAny lets the source negotiate any available transport.
	TransportAny Transport = iota
	// TransportUDP forces UDP delivery.
	TransportUDP
	// TransportTCP forces TCP-interleaved delivery.
	TransportTCP
)

// String returns a human-readable string representation of the transport.
func (t Transport) String() string {
	switch t {
	case TransportAny:
		return "any"
	case TransportUDP:
		return "udp"
	case TransportTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

func (t Transport) internal() graph.Transport {
	switch t {
	case TransportUDP:
		return graph.TransportUDP
	case TransportTCP:
		return graph.TransportTCP
	default:
		return graph.TransportAny
	}
}

// DecodePath selects one decode tier for the fallback selector.
type DecodePath int

const (
	// DecodeVAAPIH264 is the dedicated H.264 hardware decoder.
	DecodeVAAPIH264 DecodePath = iota
	// DecodeVAAPIGeneric is the generic hardware-accelerated decode path.
	DecodeVAAPIGeneric
	// DecodeSoftware is the multi-threaded software decoder.
	DecodeSoftware
)

// String returns a human-readable string representation of the path.
func (p DecodePath) String() string {
	switch p {
	case DecodeVAAPIH264:
		return "vaapi-h264"
	case DecodeVAAPIGeneric:
		return "vaapi-generic"
	case DecodeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Hardware reports whether the path uses hardware acceleration.
func (p DecodePath) Hardware() bool {
	return p == DecodeVAAPIH264 || p == DecodeVAAPIGeneric
}

func (p DecodePath) variant() graph.DecoderVariant {
	switch p {
	case DecodeVAAPIH264:
		return graph.DecoderVAAPIH264
	case DecodeVAAPIGeneric:
		return graph.DecoderVAAPIGeneric
	default:
		return graph.DecoderSoftware
	}
}

// DefaultDecodePaths returns the standard preference order: dedicated
// hardware decode first, generic hardware second, software last.
func DefaultDecodePaths() []DecodePath {
	return []DecodePath{DecodeVAAPIH264, DecodeVAAPIGeneric, DecodeSoftware}
}

// Endpoint describes the stream source.
type Endpoint struct {
	// URL is the RTSP stream URL (required).
	URL string
	// Transport is the preferred lower transport.
	Transport Transport
	// Latency is the jitter-buffer window (default 200ms).
	Latency time.Duration
	// Timeout is the connection timeout (default 5s).
	Timeout time.Duration
	// RetryBudget is the source's connection retry budget (default 3).
	RetryBudget int
	// UDPBufferSize is the socket receive buffer in bytes (default 2MB).
	UDPBufferSize int
}

// Config configures a viewing session.
type Config struct {
	// Endpoint describes the stream source (URL is required).
	Endpoint Endpoint
	// DecodePaths is the fallback preference order. Empty means
	// DefaultDecodePaths.
	DecodePaths []DecodePath
	// LowLatency enables decoder low-latency mode where supported.
	LowLatency bool
	// DecodeThreads bounds software decode threads (0 = auto).
	DecodeThreads int
	// SkipCorrupt drops damaged frames at the decoder instead of
	// emitting them.
	SkipCorrupt bool
	// SinkBuffers bounds frames queued at the graph boundary (default 5).
	SinkBuffers int
	// Display optionally receives every decoded frame in delivery order.
	Display DisplaySink
}

// NotificationKind classifies a session notification.
type NotificationKind int

const (
	// NotifyStarting signals an accepted start request: graph
	// construction has begun. Emitted once per accepted start.
	NotifyStarting NotificationKind = iota
	// NotifyActive signals the session reached Active: frames are flowing.
	NotifyActive
	// NotifyStopped signals an orderly return to Idle (stop or
	// end-of-stream), never emitted for faults.
	NotifyStopped
	// NotifyFaulted signals a runtime fault; emitted at most once per
	// started session.
	NotifyFaulted
)

// String returns a human-readable string representation of the kind.
func (k NotificationKind) String() string {
	switch k {
	case NotifyStarting:
		return "starting"
	case NotifyActive:
		return "active"
	case NotifyStopped:
		return "stopped"
	case NotifyFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// FaultCategory classifies the reason carried by a fault notification.
type FaultCategory int

const (
	// FaultNetwork indicates network failures (connection, timeout, DNS).
	FaultNetwork FaultCategory = iota
	// FaultCodec indicates codec/stream failures (decode, negotiation).
	FaultCodec
	// FaultAuth indicates authentication/authorization failures.
	FaultAuth
	// FaultUnknown indicates unclassified failures.
	FaultUnknown
)

// String returns a human-readable string representation of the category.
func (c FaultCategory) String() string {
	switch c {
	case FaultNetwork:
		return "network"
	case FaultCodec:
		return "codec"
	case FaultAuth:
		return "auth"
	default:
		return "unknown"
	}
}

func faultCategory(c graph.Category) FaultCategory {
	switch c {
	case graph.CategoryNetwork:
		return FaultNetwork
	case graph.CategoryCodec:
		return FaultCodec
	case graph.CategoryAuth:
		return FaultAuth
	default:
		return FaultUnknown
	}
}

// Notification is one lifecycle event surfaced to the caller.
type Notification struct {
	// Kind classifies the notification.
	Kind NotificationKind
	// State is the session state after the transition.
	State SessionState
	// DecodePath names the decode tier of the graph involved, if any.
	DecodePath string
	// Reason is the human-readable fault reason (NotifyFaulted only).
	Reason string
	// Category classifies the fault reason (NotifyFaulted only).
	Category FaultCategory
	// At is when the transition happened.
	At time.Time
}

// Frame is one decoded video frame delivered to the caller.
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame left the graph
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the raw frame payload, owned by the receiver
	Data []byte
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// SessionStats contains current session statistics.
type SessionStats struct {
	// State is the current lifecycle state.
	State SessionState
	// DecodePath names the active decode tier ("" when Idle).
	DecodePath string
	// Hardware reports whether the active tier is hardware-accelerated.
	Hardware bool
	// FrameCount is the total number of frames delivered
	FrameCount uint64
	// FramesDropped is the total number of frames dropped (channel full)
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100)
	DropRate float64
	// FPSReal is the measured delivery rate since the session started
	FPSReal float64
	// LatencyMS is the time since last frame in milliseconds
	LatencyMS int64
	// BytesRead is the total frame payload bytes delivered
	BytesRead uint64
	// Uptime is the time since the current graph was committed.
	Uptime time.Duration
	// FaultsNetwork counts network-classified faults
	FaultsNetwork uint64
	// FaultsCodec counts codec-classified faults
	FaultsCodec uint64
	// FaultsAuth counts auth-classified faults
	FaultsAuth uint64
	// FaultsUnknown counts unclassified faults
	FaultsUnknown uint64
}

// RateStats contains frame delivery statistics collected by Measure.
type RateStats struct {
	// FramesReceived is the number of frames seen during the window
	FramesReceived int
	// Duration is the actual window length
	Duration time.Duration
	// FPSMean is the mean delivery rate across the window
	FPSMean float64
	// FPSStdDev is the standard deviation of the instantaneous rate
	FPSStdDev float64
	// FPSMin is the minimum instantaneous rate
	FPSMin float64
	// FPSMax is the maximum instantaneous rate
	FPSMax float64
	// IsStable is true if the rate is stable (stddev < 15% of mean and
	// jitter < 20% of the expected interval)
	IsStable bool
	// JitterMean is the mean inter-frame interval variance in seconds
	JitterMean float64
	// JitterMax is the worst jitter observed in seconds
	JitterMax float64
}
