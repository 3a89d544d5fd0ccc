// Package graphtest provides an in-memory graph.Backend for tests: no
// media framework, deterministic failure injection, and an allocation
// counter to verify that failed or torn-down graphs never leak units.
package graphtest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/streamview/internal/graph"
)

// Backend is a fake graph backend. Zero value is not usable; call New.
//
// Failure injection fields are read when the affected object is created,
// so tests set them before triggering a build.
type Backend struct {
	// StaticLinkErr, when set, makes every static output port fail to link.
	StaticLinkErr error
	// DynamicLinkErr, when set, makes the negotiated source link fail.
	DynamicLinkErr error
	// PlayErr, when set, makes Container.Play fail.
	PlayErr error
	// Barrier, when set, blocks NewContainer until the channel is closed
	// or receives. Lets tests observe a session mid-construction.
	Barrier chan struct{}

	mu         sync.Mutex
	failRole   map[string]error
	containers []*Container

	liveUnits      atomic.Int64
	liveContainers atomic.Int64
}

// New creates an empty fake backend where every role resolves.
func New() *Backend {
	return &Backend{failRole: make(map[string]error)}
}

// FailKind makes every role of the given kind fail to resolve with err.
func (b *Backend) FailKind(k graph.Kind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRole[k.String()] = err
}

// FailDecoder makes the given decoder variant fail to resolve with err.
func (b *Backend) FailDecoder(v graph.DecoderVariant, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRole[fmt.Sprintf("%s(%s)", graph.KindDecoder, v)] = err
}

// Allocated returns the number of live units plus containers. Zero after
// all graphs are released.
func (b *Backend) Allocated() int {
	return int(b.liveUnits.Load() + b.liveContainers.Load())
}

// Container returns the most recently created container, or nil.
func (b *Backend) Container() *Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.containers) == 0 {
		return nil
	}
	return b.containers[len(b.containers)-1]
}

// ContainersCreated returns how many containers have been created, i.e.
// how many build attempts reached the backend.
func (b *Backend) ContainersCreated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.containers)
}

// NewContainer implements graph.Backend.
func (b *Backend) NewContainer(name string) (graph.Container, error) {
	if b.Barrier != nil {
		<-b.Barrier
	}
	c := &Container{
		name:    name,
		backend: b,
		playErr: b.PlayErr,
		events:  make(chan graph.Event, 16),
	}
	b.liveContainers.Add(1)
	b.mu.Lock()
	b.containers = append(b.containers, c)
	b.mu.Unlock()
	return c, nil
}

// NewUnit implements graph.Backend.
func (b *Backend) NewUnit(role graph.Role) (graph.Unit, error) {
	b.mu.Lock()
	err, injected := b.failRole[role.Name()]
	if !injected {
		err, injected = b.failRole[role.Kind.String()]
	}
	b.mu.Unlock()
	if injected {
		return nil, err
	}

	u := &Unit{
		role:    role,
		name:    fmt.Sprintf("%s0", role.Kind),
		backend: b,
	}
	switch role.Kind {
	case graph.KindSource:
		// Dynamic output: no static out port.
	case graph.KindSink:
		u.in = &fakePort{name: "sink"}
		u.frames = make(chan graph.Frame, 10)
	default:
		u.in = &fakePort{name: "sink"}
		u.out = &fakePort{name: "src", linkErr: b.StaticLinkErr}
	}
	b.liveUnits.Add(1)
	return u, nil
}

// Container is the fake graph container.
type Container struct {
	name    string
	backend *Backend
	playErr error

	mu      sync.Mutex
	units   []*Unit
	playing bool
	closed  bool
	events  chan graph.Event
}

// Name implements graph.Container.
func (c *Container) Name() string { return c.name }

// Add implements graph.Container.
func (c *Container) Add(u graph.Unit) error {
	fu, ok := u.(*Unit)
	if !ok {
		return fmt.Errorf("graphtest: foreign unit %T", u)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("graphtest: container closed")
	}
	fu.owned = true
	c.units = append(c.units, fu)
	return nil
}

// Play implements graph.Container.
func (c *Container) Play() error {
	if c.playErr != nil {
		return c.playErr
	}
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
	return nil
}

// Stop implements graph.Container.
func (c *Container) Stop() error {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	return nil
}

// Events implements graph.Container.
func (c *Container) Events() <-chan graph.Event { return c.events }

// Close implements graph.Container.
func (c *Container) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	units := c.units
	c.mu.Unlock()

	for _, u := range units {
		u.release()
	}
	c.backend.liveContainers.Add(-1)
	close(c.events)
}

// Playing reports whether Play has been commanded without a later Stop.
func (c *Container) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Inject delivers an event as if a running stage had produced it.
func (c *Container) Inject(ev graph.Event) {
	if ev.Source == "" {
		ev.Source = c.name
	}
	c.events <- ev
}

// Announce simulates the source announcing an output of the given media
// type, invoking the registered negotiation handler synchronously on the
// caller's goroutine (the fake's stand-in for a framework dispatch
// thread). Returns the announced port so tests can inspect link state,
// or nil when no handler is registered.
func (c *Container) Announce(mediaType string) graph.Port {
	var src *Unit
	c.mu.Lock()
	for _, u := range c.units {
		if u.role.Kind == graph.KindSource {
			src = u
			break
		}
	}
	c.mu.Unlock()
	if src == nil || src.onOutput == nil {
		return nil
	}

	p := &fakePort{
		name:      fmt.Sprintf("recv_rtp_src_%d", src.announces.Add(1)-1),
		mediaType: mediaType,
		linkErr:   c.backend.DynamicLinkErr,
	}
	src.onOutput(p)
	return p
}

// EmitFrame delivers a decoded frame through the sink, as the running
// graph would once negotiation completed.
func (c *Container) EmitFrame(data []byte) {
	var sink *Unit
	c.mu.Lock()
	for _, u := range c.units {
		if u.role.Kind == graph.KindSink {
			sink = u
			break
		}
	}
	c.mu.Unlock()
	if sink == nil {
		return
	}
	sink.frames <- graph.Frame{
		Seq:       sink.seq.Add(1),
		Timestamp: time.Now(),
		Data:      data,
		TraceID:   uuid.New().String(),
	}
}

// Unit is the fake processing unit.
type Unit struct {
	role    graph.Role
	name    string
	backend *Backend

	in  *fakePort
	out *fakePort

	onOutput  func(graph.Port)
	announces atomic.Int32

	frames chan graph.Frame // sink only
	seq    atomic.Uint64

	owned    bool
	released atomic.Bool
}

// Role implements graph.Unit.
func (u *Unit) Role() graph.Role { return u.role }

// Name implements graph.Unit.
func (u *Unit) Name() string { return u.name }

// Input implements graph.Unit.
func (u *Unit) Input() graph.Port {
	if u.in == nil {
		return nil
	}
	return u.in
}

// Output implements graph.Unit.
func (u *Unit) Output() graph.Port {
	if u.out == nil {
		return nil
	}
	return u.out
}

// OnOutputAdded implements graph.Unit.
func (u *Unit) OnOutputAdded(fn func(graph.Port)) { u.onOutput = fn }

// Release implements graph.Unit.
func (u *Unit) Release() { u.release() }

// Frames implements graph.FrameSource for sink units; nil otherwise.
func (u *Unit) Frames() <-chan graph.Frame { return u.frames }

func (u *Unit) release() {
	if !u.released.CompareAndSwap(false, true) {
		return
	}
	if u.frames != nil {
		close(u.frames)
	}
	u.backend.liveUnits.Add(-1)
}

// fakePort is the fake connection point.
type fakePort struct {
	name      string
	mediaType string
	linkErr   error

	mu     sync.Mutex
	linked bool
}

// Name implements graph.Port.
func (p *fakePort) Name() string { return p.name }

// MediaType implements graph.Port.
func (p *fakePort) MediaType() string { return p.mediaType }

// Linked implements graph.Port.
func (p *fakePort) Linked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linked
}

// Link implements graph.Port.
func (p *fakePort) Link(sink graph.Port) error {
	if p.linkErr != nil {
		return fmt.Errorf("link %s: %w", p.name, p.linkErr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.linked {
		return fmt.Errorf("graphtest: port %s already linked", p.name)
	}
	p.linked = true
	if fp, ok := sink.(*fakePort); ok {
		fp.mu.Lock()
		fp.linked = true
		fp.mu.Unlock()
	}
	return nil
}
