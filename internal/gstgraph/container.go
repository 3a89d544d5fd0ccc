package gstgraph

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/streamview/internal/graph"
)

// container wraps a gst.Pipeline and translates its bus traffic into
// backend-neutral events.
type container struct {
	pipeline *gst.Pipeline
	events   chan graph.Event

	stop chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

func newContainer(pipeline *gst.Pipeline) *container {
	c := &container{
		pipeline: pipeline,
		events:   make(chan graph.Event, 16),
		stop:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.pollBus()
	return c
}

// Name implements graph.Container.
func (c *container) Name() string { return c.pipeline.GetName() }

// Add implements graph.Container.
func (c *container) Add(u graph.Unit) error {
	ge, ok := u.(gstElement)
	if !ok {
		return fmt.Errorf("gst: cannot add foreign unit %T", u)
	}
	if err := c.pipeline.Add(ge.element()); err != nil {
		return fmt.Errorf("gst: adding %s to pipeline: %w", u.Name(), err)
	}
	return nil
}

// Play implements graph.Container.
func (c *container) Play() error {
	if err := c.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("gst: setting pipeline to PLAYING: %w", err)
	}
	return nil
}

// Stop implements graph.Container.
func (c *container) Stop() error {
	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gst: setting pipeline to NULL: %w", err)
	}
	return nil
}

// Events implements graph.Container.
func (c *container) Events() <-chan graph.Event { return c.events }

// Close implements graph.Container. The pipeline owns its elements, so
// dropping it to NULL releases every unit that was added.
func (c *container) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.pipeline.SetState(gst.StateNull)
		close(c.events)
	})
}

// pollBus pumps bus messages into the event channel until Close. Short
// poll timeout keeps shutdown responsive.
func (c *container) pollBus() {
	defer c.wg.Done()

	bus := c.pipeline.GetPipelineBus()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			c.post(graph.Event{
				Class:  graph.ClassEndOfStream,
				Source: msg.Source(),
			})

		case gst.MessageError:
			gerr := msg.ParseError()
			c.post(graph.Event{
				Class:   graph.ClassError,
				Source:  msg.Source(),
				Message: gerr.Error(),
				Debug:   gerr.DebugString(),
			})

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			c.post(graph.Event{
				Class:   graph.ClassWarning,
				Source:  msg.Source(),
				Message: gerr.Error(),
				Debug:   gerr.DebugString(),
			})

		case gst.MessageStateChanged:
			old, next := msg.ParseStateChanged()
			c.post(graph.Event{
				Class:    graph.ClassStateChanged,
				Source:   msg.Source(),
				OldState: old.String(),
				NewState: next.String(),
			})
		}
	}
}

// post forwards an event without blocking the bus poller. Dropping an
// event is acceptable: the session only needs one fault to act.
func (c *container) post(ev graph.Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("gstgraph: event channel full, dropping",
			"class", ev.Class.String(),
			"source", ev.Source,
		)
	}
}
