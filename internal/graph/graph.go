package graph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Graph is the fully assembled processing graph for one session: an
// ordered set of units living inside one container, plus the deferred
// source link completed at negotiation time. The session state machine is
// the exclusive owner; no other component keeps a handle past
// registration.
type Graph struct {
	topology  Topology
	container Container
	units     []Unit
	frames    FrameSource // sink unit, when it exposes frames

	// events merges container events with internally generated ones
	// (negotiation link failures). Single consumer.
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup

	evMu     sync.Mutex
	evClosed bool

	// linked guards the deferred source link: at most one pending
	// registration, immutable once resolved.
	linked   atomic.Bool
	released atomic.Bool
}

// Name returns the container name; top-level events carry it as source.
func (g *Graph) Name() string {
	return g.container.Name()
}

// Topology returns the topology the graph was built from.
func (g *Graph) Topology() Topology {
	return g.topology
}

// Events returns the graph's event channel. Closed on Release.
func (g *Graph) Events() <-chan Event {
	return g.events
}

// Frames returns the sink's frame channel, or nil when the sink does not
// deliver frames into the process.
func (g *Graph) Frames() <-chan Frame {
	if g.frames == nil {
		return nil
	}
	return g.frames.Frames()
}

// Play commands the graph to begin active processing. Negotiation with
// the stream source completes while the graph spins up; data cannot flow
// before the deferred link resolves.
func (g *Graph) Play() error {
	if err := g.container.Play(); err != nil {
		return fmt.Errorf("graph: play %s: %w", g.topology.Name, err)
	}
	return nil
}

// Release tears the graph down: stops the container, drains the event
// pump and frees every unit. Idempotent; safe to call from any goroutine,
// but never from inside an event dispatch originating from this graph.
func (g *Graph) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}

	if err := g.container.Stop(); err != nil {
		slog.Warn("graph: stop during release failed", "topology", g.topology.Name, "error", err)
	}

	close(g.stop)
	g.wg.Wait()
	g.container.Close()

	g.evMu.Lock()
	g.evClosed = true
	close(g.events)
	g.evMu.Unlock()

	slog.Debug("graph: released", "topology", g.topology.Name)
}

// postEvent delivers an event to the single consumer without ever
// blocking a producing dispatch. Events posted after Release are dropped.
func (g *Graph) postEvent(ev Event) {
	g.evMu.Lock()
	defer g.evMu.Unlock()
	if g.evClosed {
		return
	}
	select {
	case g.events <- ev:
	default:
		slog.Warn("graph: event channel full, dropping event",
			"topology", g.topology.Name,
			"class", ev.Class.String(),
			"source", ev.Source,
		)
	}
}

// pump forwards container events into the merged channel until release.
func (g *Graph) pump() {
	defer g.wg.Done()
	src := g.container.Events()
	for {
		select {
		case <-g.stop:
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			g.postEvent(ev)
		}
	}
}

// handleAnnouncement completes the deferred link when the source
// announces the media type it will emit. Invoked asynchronously, possibly
// on a framework dispatch thread, possibly more than once.
//
// Policy: non-video announcements are ignored (sources emit several and
// only one is relevant); a duplicate announcement for an already-linked
// port is a silent no-op; a failed video link is fatal and surfaces as an
// error event, with no automatic retry.
func (g *Graph) handleAnnouncement(p Port) {
	mediaType := p.MediaType()
	slog.Debug("graph: source output announced",
		"topology", g.topology.Name,
		"port", p.Name(),
		"media_type", mediaType,
	)

	if !strings.HasPrefix(mediaType, "video/") {
		slog.Debug("graph: ignoring non-video announcement",
			"port", p.Name(),
			"media_type", mediaType,
		)
		return
	}

	if p.Linked() || !g.linked.CompareAndSwap(false, true) {
		slog.Debug("graph: duplicate announcement for linked port, ignoring",
			"port", p.Name(),
		)
		return
	}

	in := g.units[1].Input()
	if err := p.Link(in); err != nil {
		g.postEvent(Event{
			Class:   ClassError,
			Source:  g.Name(),
			Message: fmt.Sprintf("negotiated link failed: %v", err),
		})
		return
	}

	slog.Debug("graph: deferred link established",
		"topology", g.topology.Name,
		"port", p.Name(),
		"downstream", g.units[1].Name(),
	)
}
