package gstgraph

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/streamview/internal/graph"
)

// sinkUnit is the terminal appsink unit. It pulls decoded samples and
// hands them to the session as frames.
type sinkUnit struct {
	unit
	appsink *app.Sink
	frames  chan graph.Frame

	frameSeq uint64
	dropped  uint64
}

func newSinkUnit(role graph.Role) (*sinkUnit, error) {
	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, err
	}

	cfg := role.Sink
	appsink.SetProperty("sync", cfg.Sync)
	appsink.SetProperty("max-buffers", uint(cfg.MaxBuffers))
	appsink.SetProperty("drop", cfg.Drop)
	appsink.SetProperty("qos", false)
	appsink.SetProperty("enable-last-sample", false)
	appsink.SetProperty("emit-signals", false)

	s := &sinkUnit{
		unit:    unit{role: role, elem: appsink.Element},
		appsink: appsink,
		frames:  make(chan graph.Frame, 10),
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	return s, nil
}

// Frames implements graph.FrameSource.
func (s *sinkUnit) Frames() <-chan graph.Frame { return s.frames }

// onNewSample pulls the decoded sample, copies it out of the reusable
// buffer, and forwards it without blocking the streaming thread.
func (s *sinkUnit) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// A single bad sample should not end the stream.
		slog.Warn("gstgraph: failed to pull sample, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstgraph: sample without buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstgraph: empty buffer received")
		return gst.FlowOK
	}

	width, height := sampleDimensions(sample)

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	frame := graph.Frame{
		Seq:       atomic.AddUint64(&s.frameSeq, 1),
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Data:      frameData,
		TraceID:   uuid.New().String(),
	}

	select {
	case s.frames <- frame:
	default:
		atomic.AddUint64(&s.dropped, 1)
		slog.Debug("gstgraph: dropping frame, channel full",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
		)
	}

	return gst.FlowOK
}

// sampleDimensions reads width/height from the sample caps, if present.
func sampleDimensions(sample *gst.Sample) (int, int) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0
	}
	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, _ := width.(int)
	h, _ := height.(int)
	return w, h
}
