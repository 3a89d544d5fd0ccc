package graph

import (
	"fmt"
	"time"
)

// Kind is the logical role of a processing unit inside a graph.
type Kind int

const (
	// KindSource produces the encoded stream; its output port is dynamic
	// (the media type is announced only after negotiation).
	KindSource Kind = iota
	// KindDepayloader extracts elementary stream data from transport packets.
	KindDepayloader
	// KindParser aligns and annotates the elementary stream.
	KindParser
	// KindDecoder turns encoded video into raw frames.
	KindDecoder
	// KindConverter normalizes raw frame formats for the sink.
	KindConverter
	// KindSink is the terminal boundary where frames leave the graph.
	KindSink
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindDepayloader:
		return "depayloader"
	case KindParser:
		return "parser"
	case KindDecoder:
		return "decoder"
	case KindConverter:
		return "converter"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// DecoderVariant selects a concrete decode capability for KindDecoder roles.
type DecoderVariant int

const (
	// DecoderVAAPIH264 is the dedicated H.264 hardware decoder (vaapih264dec).
	DecoderVAAPIH264 DecoderVariant = iota
	// DecoderVAAPIGeneric is the generic accelerated decode path (vaapidecodebin).
	DecoderVAAPIGeneric
	// DecoderSoftware is the multi-threaded software decoder (avdec_h264).
	DecoderSoftware
)

// String returns a human-readable name for the decoder variant.
func (v DecoderVariant) String() string {
	switch v {
	case DecoderVAAPIH264:
		return "vaapi-h264"
	case DecoderVAAPIGeneric:
		return "vaapi-generic"
	case DecoderSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Hardware reports whether the variant uses hardware acceleration.
func (v DecoderVariant) Hardware() bool {
	return v == DecoderVAAPIH264 || v == DecoderVAAPIGeneric
}

// Transport is the preferred lower transport for the stream source.
type Transport int

const (
	// TransportAny lets the source negotiate any available transport.
	TransportAny Transport = iota
	// TransportUDP forces UDP delivery.
	TransportUDP
	// TransportTCP forces TCP-interleaved delivery.
	TransportTCP
)

// String returns a human-readable name for the transport.
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

// SourceConfig configures a KindSource unit.
type SourceConfig struct {
	// Location is the stream URI (e.g. rtsp://camera/stream).
	Location string
	// Latency is the target jitter-buffer window.
	Latency time.Duration
	// Transport is the preferred lower transport.
	Transport Transport
	// RetryBudget is the number of connection retries the source may spend.
	RetryBudget int
	// Timeout is the connection timeout.
	Timeout time.Duration
	// UDPBufferSize is the socket receive buffer in bytes (0 = backend default).
	UDPBufferSize int
}

// DepayConfig configures a KindDepayloader unit.
type DepayConfig struct {
	// RequestKeyframe asks upstream for a keyframe on packet loss for
	// faster recovery.
	RequestKeyframe bool
}

// ParserConfig configures a KindParser unit.
type ParserConfig struct{}

// DecoderConfig configures a KindDecoder unit.
type DecoderConfig struct {
	Variant DecoderVariant
	// LowLatency enables the decoder's low-latency mode where supported.
	LowLatency bool
	// MaxThreads bounds software decode threads (0 = auto-detect cores).
	MaxThreads int
	// SkipCorrupt lets the decoder drop damaged frames instead of emitting them.
	SkipCorrupt bool
}

// ConverterConfig configures a KindConverter unit.
type ConverterConfig struct {
	// Threads bounds conversion threads (0 = auto-detect cores).
	Threads int
}

// SinkConfig configures a KindSink unit.
type SinkConfig struct {
	// Sync synchronizes frame delivery to the clock. Live viewing keeps
	// this off to avoid blocking on the sink.
	Sync bool
	// MaxBuffers bounds frames queued at the sink (0 = unbounded).
	MaxBuffers int
	// Drop discards the oldest queued frame when MaxBuffers is reached.
	Drop bool
}

// Role is a tagged variant describing one required processing unit: its
// logical kind plus the typed configuration record for that kind. Exactly
// the field matching Kind is non-nil.
type Role struct {
	Kind Kind

	Source    *SourceConfig
	Depay     *DepayConfig
	Parser    *ParserConfig
	Decoder   *DecoderConfig
	Converter *ConverterConfig
	Sink      *SinkConfig
}

// SourceRole builds a source role.
func SourceRole(cfg SourceConfig) Role { return Role{Kind: KindSource, Source: &cfg} }

// DepayRole builds a depayloader role.
func DepayRole(cfg DepayConfig) Role { return Role{Kind: KindDepayloader, Depay: &cfg} }

// ParserRole builds a parser role.
func ParserRole() Role { return Role{Kind: KindParser, Parser: &ParserConfig{}} }

// DecoderRole builds a decoder role for the given variant.
func DecoderRole(cfg DecoderConfig) Role { return Role{Kind: KindDecoder, Decoder: &cfg} }

// ConverterRole builds a converter role.
func ConverterRole(cfg ConverterConfig) Role { return Role{Kind: KindConverter, Converter: &cfg} }

// SinkRole builds a sink role.
func SinkRole(cfg SinkConfig) Role { return Role{Kind: KindSink, Sink: &cfg} }

// Name identifies the role in logs and error messages.
func (r Role) Name() string {
	if r.Kind == KindDecoder && r.Decoder != nil {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Decoder.Variant)
	}
	return r.Kind.String()
}

// Topology is an ordered processing-unit sequence from source to sink.
// The fallback selector tries topologies in list order, so adding an
// alternative decode tier is a data change, not new control flow.
type Topology struct {
	// Name identifies the topology in logs and stats (e.g. "vaapi-h264").
	Name string
	// Roles is the required unit sequence, source first, sink last.
	Roles []Role
}

// Validate checks the structural invariants of the topology: at least a
// source and a sink, with the source first and the sink last.
func (t Topology) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("graph: topology name is required")
	}
	if len(t.Roles) < 2 {
		return fmt.Errorf("graph: topology %q needs at least a source and a sink", t.Name)
	}
	if t.Roles[0].Kind != KindSource {
		return fmt.Errorf("graph: topology %q must start with a source, got %s", t.Name, t.Roles[0].Kind)
	}
	if t.Roles[len(t.Roles)-1].Kind != KindSink {
		return fmt.Errorf("graph: topology %q must end with a sink, got %s", t.Name, t.Roles[len(t.Roles)-1].Kind)
	}
	for i, role := range t.Roles[1 : len(t.Roles)-1] {
		if role.Kind == KindSource || role.Kind == KindSink {
			return fmt.Errorf("graph: topology %q has misplaced %s at position %d", t.Name, role.Kind, i+1)
		}
	}
	return nil
}
