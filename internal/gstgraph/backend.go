// Package gstgraph implements graph.Backend on top of GStreamer via the
// go-gst binding. It is the only package that touches the media
// framework; everything above it works against the graph interfaces.
package gstgraph

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/streamview/internal/graph"
)

// factoryName resolves a role to the GStreamer element factory that
// provides it. Decoder roles dispatch on the variant; everything else is
// fixed for an H.264-over-RTP topology.
func factoryName(role graph.Role) (string, error) {
	switch role.Kind {
	case graph.KindSource:
		return "rtspsrc", nil
	case graph.KindDepayloader:
		return "rtph264depay", nil
	case graph.KindParser:
		return "h264parse", nil
	case graph.KindDecoder:
		if role.Decoder == nil {
			return "", fmt.Errorf("gst: decoder role without config")
		}
		switch role.Decoder.Variant {
		case graph.DecoderVAAPIH264:
			return "vaapih264dec", nil
		case graph.DecoderVAAPIGeneric:
			return "vaapidecodebin", nil
		case graph.DecoderSoftware:
			return "avdec_h264", nil
		default:
			return "", fmt.Errorf("gst: unknown decoder variant %d", role.Decoder.Variant)
		}
	case graph.KindConverter:
		return "videoconvert", nil
	case graph.KindSink:
		return "appsink", nil
	default:
		return "", fmt.Errorf("gst: unknown role kind %d", role.Kind)
	}
}

// Backend creates GStreamer-backed containers and units.
type Backend struct{}

// NewBackend initializes GStreamer (safe to call multiple times) and
// returns a backend. Fails when the runtime itself is unusable so callers
// get a clear error at construction instead of a broken first session.
func NewBackend() (*Backend, error) {
	if err := Available(); err != nil {
		return nil, err
	}
	return &Backend{}, nil
}

// Available probes whether GStreamer itself is usable on this host by
// creating a trivial element. Fail-fast check for constructors.
func Available() error {
	gst.Init(nil)
	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("gstreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}

// NewContainer implements graph.Backend.
func (b *Backend) NewContainer(name string) (graph.Container, error) {
	pipeline, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("gst: create pipeline: %w", err)
	}
	c := newContainer(pipeline)
	return c, nil
}

// NewUnit implements graph.Backend: a single factory probe per call, no
// retries. A factory that is not installed (missing plugin, absent
// hardware support) surfaces as ErrUnavailableCapability so the fallback
// selector can try the next topology.
func (b *Backend) NewUnit(role graph.Role) (graph.Unit, error) {
	factory, err := factoryName(role)
	if err != nil {
		return nil, err
	}

	if role.Kind == graph.KindSink {
		return newSinkUnit(role)
	}

	elem, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", graph.ErrUnavailableCapability, role.Name(), factory, err)
	}

	u := &unit{role: role, elem: elem}
	u.applyConfig()

	slog.Debug("gst: unit created", "role", role.Name(), "factory", factory)
	return u, nil
}
