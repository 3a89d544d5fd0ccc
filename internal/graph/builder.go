package graph

import (
	"fmt"
	"log/slog"
)

// Build assembles a candidate graph from the topology: resolves each role
// through the backend, adds every unit to a fresh container, establishes
// all statically determinable links, and registers the negotiation
// handler on the source's dynamic output.
//
// Construction is atomic: on any failure every unit created for this
// attempt is released before returning, so no partial graph is ever
// exposed. On success the graph is in the awaiting-negotiation sub-state;
// the caller owns it and must eventually call Release.
func Build(backend Backend, topo Topology) (*Graph, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	container, err := backend.NewContainer(topo.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: container for %s: %v", ErrElementCreation, topo.Name, err)
	}

	units := make([]Unit, 0, len(topo.Roles))
	fail := func(cause error) (*Graph, error) {
		// The container owns every unit already added; closing it releases
		// the whole attempt.
		container.Close()
		return nil, cause
	}

	for _, role := range topo.Roles {
		unit, err := backend.NewUnit(role)
		if err != nil {
			return fail(fmt.Errorf("create %s for %s: %w", role.Name(), topo.Name, err))
		}
		if err := container.Add(unit); err != nil {
			unit.Release()
			return fail(fmt.Errorf("%w: add %s to %s: %v", ErrElementCreation, role.Name(), topo.Name, err))
		}
		units = append(units, unit)
	}

	// Static links: everything except the source's output, whose shape is
	// unknown until negotiation.
	for i := 1; i < len(units)-1; i++ {
		out := units[i].Output()
		in := units[i+1].Input()
		if out == nil || in == nil {
			return fail(fmt.Errorf("%w: %s -> %s in %s: missing port",
				ErrLinkIncompatible, units[i].Name(), units[i+1].Name(), topo.Name))
		}
		if err := out.Link(in); err != nil {
			return fail(fmt.Errorf("link %s -> %s in %s: %w",
				units[i].Name(), units[i+1].Name(), topo.Name, err))
		}
	}

	g := &Graph{
		topology:  topo,
		container: container,
		units:     units,
		events:    make(chan Event, 16),
		stop:      make(chan struct{}),
	}

	if fs, ok := units[len(units)-1].(FrameSource); ok {
		g.frames = fs
	}

	// Deferred link: resolved by handleAnnouncement once the source
	// announces its media type.
	units[0].OnOutputAdded(g.handleAnnouncement)

	g.wg.Add(1)
	go g.pump()

	slog.Debug("graph: built, awaiting negotiation",
		"topology", topo.Name,
		"units", len(units),
	)
	return g, nil
}
