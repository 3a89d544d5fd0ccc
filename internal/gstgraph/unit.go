package gstgraph

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/streamview/internal/graph"
)

// unit wraps one GStreamer element.
type unit struct {
	role graph.Role
	elem *gst.Element
}

// applyConfig writes the role's typed configuration record onto the
// element's properties.
func (u *unit) applyConfig() {
	switch u.role.Kind {
	case graph.KindSource:
		cfg := u.role.Source
		u.elem.SetProperty("location", cfg.Location)
		u.elem.SetProperty("latency", int(cfg.Latency.Milliseconds()))
		u.elem.SetProperty("protocols", protocolsMask(cfg.Transport))
		if cfg.RetryBudget > 0 {
			u.elem.SetProperty("retry", cfg.RetryBudget)
		}
		if cfg.Timeout > 0 {
			u.elem.SetProperty("timeout", uint64(cfg.Timeout.Microseconds()))
			u.elem.SetProperty("tcp-timeout", uint64(cfg.Timeout.Microseconds()))
		}
		if cfg.UDPBufferSize > 0 {
			u.elem.SetProperty("udp-buffer-size", cfg.UDPBufferSize)
		}
		u.elem.SetProperty("ntp-sync", false)

	case graph.KindDepayloader:
		if u.role.Depay.RequestKeyframe {
			u.elem.SetProperty("request-keyframe", true)
		}

	case graph.KindParser:
		// h264parse needs no tuning.

	case graph.KindDecoder:
		cfg := u.role.Decoder
		switch cfg.Variant {
		case graph.DecoderVAAPIH264:
			if cfg.LowLatency {
				u.elem.SetProperty("low-latency", true)
			}
			if cfg.SkipCorrupt {
				u.elem.SetProperty("output-corrupt", false)
			}
		case graph.DecoderSoftware:
			u.elem.SetProperty("max-threads", cfg.MaxThreads)
			if cfg.SkipCorrupt {
				u.elem.SetProperty("output-corrupt", false)
			}
		}

	case graph.KindConverter:
		u.elem.SetProperty("n-threads", u.role.Converter.Threads)
	}
}

// protocolsMask maps the preferred transport to the rtspsrc protocols
// bitmask (UDP=1, UDP multicast=2, TCP=4).
func protocolsMask(t graph.Transport) int {
	switch t {
	case graph.TransportUDP:
		return 0x1
	case graph.TransportTCP:
		return 0x4
	default:
		return 0x7
	}
}

// Role implements graph.Unit.
func (u *unit) Role() graph.Role { return u.role }

// Name implements graph.Unit.
func (u *unit) Name() string { return u.elem.GetName() }

// Input implements graph.Unit.
func (u *unit) Input() graph.Port {
	if u.role.Kind == graph.KindSource {
		return nil
	}
	pad := u.elem.GetStaticPad("sink")
	if pad == nil {
		return nil
	}
	return &port{pad: pad}
}

// Output implements graph.Unit. The source's output is dynamic and
// reported through OnOutputAdded instead.
func (u *unit) Output() graph.Port {
	if u.role.Kind == graph.KindSource || u.role.Kind == graph.KindSink {
		return nil
	}
	pad := u.elem.GetStaticPad("src")
	if pad == nil {
		return nil
	}
	return &port{pad: pad}
}

// OnOutputAdded implements graph.Unit by connecting the element's
// pad-added signal. The handler runs on a GStreamer streaming thread.
func (u *unit) OnOutputAdded(fn func(graph.Port)) {
	u.elem.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		fn(&port{pad: pad})
	})
}

// Release implements graph.Unit for units not yet owned by a pipeline.
func (u *unit) Release() {
	u.elem.SetState(gst.StateNull)
}

// element lets the container reach the underlying *gst.Element.
func (u *unit) element() *gst.Element { return u.elem }

// gstElement is what the container requires of a unit implementation.
type gstElement interface {
	element() *gst.Element
}

// port wraps a GStreamer pad.
type port struct {
	pad *gst.Pad
}

// Name implements graph.Port.
func (p *port) Name() string { return p.pad.GetName() }

// MediaType implements graph.Port: the negotiated caps' structure name,
// or empty while negotiation has not happened. RTP pads all share the
// application/x-rtp structure name and declare their payload class in
// the media field instead, so that field decides whether the pad counts
// as video.
func (p *port) MediaType() string {
	caps := p.pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return ""
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return ""
	}

	rtpMedia := ""
	if v, err := structure.GetValue("media"); err == nil {
		rtpMedia, _ = v.(string)
	}
	return padMediaType(structure.Name(), rtpMedia)
}

// padMediaType resolves the announced media type for a pad. A plain
// structure name passes through; an RTP pad carrying media=video is
// reported as video so the deferred source link completes for it.
func padMediaType(name, rtpMedia string) string {
	if name == "application/x-rtp" && rtpMedia == "video" {
		return "video/x-rtp"
	}
	return name
}

// Linked implements graph.Port.
func (p *port) Linked() bool { return p.pad.IsLinked() }

// Link implements graph.Port.
func (p *port) Link(sink graph.Port) error {
	sp, ok := sink.(*port)
	if !ok {
		return fmt.Errorf("gst: cannot link to foreign port %T", sink)
	}
	if ret := p.pad.Link(sp.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("%w: %s -> %s: %s", graph.ErrLinkIncompatible, p.Name(), sp.Name(), ret)
	}
	return nil
}
