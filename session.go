package streamview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/streamview/internal/graph"
	"github.com/e7canasta/streamview/internal/gstgraph"
	"github.com/e7canasta/streamview/internal/rate"
)

// Caller-visible sentinel errors.
var (
	// ErrNoViableDecodePath means every configured decode tier failed to
	// construct.
	ErrNoViableDecodePath = graph.ErrNoViableTopology

	// ErrStoppedDuringStart means Stop arrived while construction was in
	// flight; the session honored the stop and never went active.
	ErrStoppedDuringStart = errors.New("streamview: stopped during construction")

	// ErrSessionClosed means the session was closed and accepts no more
	// commands.
	ErrSessionClosed = errors.New("streamview: session closed")
)

const (
	defaultLatency       = 200 * time.Millisecond
	defaultTimeout       = 5 * time.Second
	defaultRetryBudget   = 3
	defaultUDPBufferSize = 2 * 1024 * 1024
	defaultSinkBuffers   = 5
)

// Session is a live viewing session: it owns at most one processing graph
// at a time and drives it through the lifecycle states.
//
// All state transitions happen on a single run-loop goroutine; caller
// commands and graph events funnel into the same queue, so transitions
// are totally ordered. Construction and teardown run on worker goroutines
// that post completion commands back to the loop, keeping it responsive
// while the media framework blocks.
type Session struct {
	cfg     Config
	backend graph.Backend
	display DisplaySink

	cmds    chan command
	quit    chan struct{}
	runDone chan struct{}

	notifs chan Notification
	frames chan Frame

	// fwd tracks live forwarder goroutines; the run loop waits for them
	// before closing the public channels, since a forwarder may still
	// hold an in-flight frame when the graph is released.
	fwd sync.WaitGroup

	closed atomic.Bool

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	framesDropped uint64
	bytesRead     uint64
	faultsNetwork uint64
	faultsCodec   uint64
	faultsAuth    uint64
	faultsUnknown uint64

	mu          sync.RWMutex
	state       SessionState
	decodePath  string
	hardware    bool
	started     time.Time
	lastFrameAt time.Time
}

// Session commands. Replies are buffered so the run loop never blocks on
// a caller.
type command interface{}

type cmdStart struct {
	ctx   context.Context
	reply chan startReply
}

type startReply struct {
	state SessionState
	err   error
}

type cmdStop struct {
	reply chan error
}

type cmdBuilt struct {
	g   *graph.Graph
	err error
}

type releaseCause int

const (
	causeStop releaseCause = iota
	causeEOS
	causeFault
)

type cmdReleased struct {
	cause releaseCause
}

// New creates a session backed by the GStreamer runtime, with fail-fast
// validation of the configuration and the runtime itself.
func New(cfg Config) (*Session, error) {
	backend, err := gstgraph.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("streamview: media runtime not available: %w", err)
	}
	return newSession(cfg, backend)
}

// newSession wires a session to an explicit backend. Tests use this with
// an in-memory fake.
func newSession(cfg Config, backend graph.Backend) (*Session, error) {
	if cfg.Endpoint.URL == "" {
		return nil, fmt.Errorf("streamview: endpoint URL is required")
	}
	if cfg.Endpoint.Latency < 0 {
		return nil, fmt.Errorf("streamview: negative latency %v", cfg.Endpoint.Latency)
	}
	if cfg.Endpoint.Latency == 0 {
		cfg.Endpoint.Latency = defaultLatency
	}
	if cfg.Endpoint.Timeout == 0 {
		cfg.Endpoint.Timeout = defaultTimeout
	}
	if cfg.Endpoint.RetryBudget == 0 {
		cfg.Endpoint.RetryBudget = defaultRetryBudget
	}
	if cfg.Endpoint.UDPBufferSize == 0 {
		cfg.Endpoint.UDPBufferSize = defaultUDPBufferSize
	}
	if cfg.SinkBuffers == 0 {
		cfg.SinkBuffers = defaultSinkBuffers
	}
	if len(cfg.DecodePaths) == 0 {
		cfg.DecodePaths = DefaultDecodePaths()
	}

	s := &Session{
		cfg:     cfg,
		backend: backend,
		display: cfg.Display,
		cmds:    make(chan command, 8),
		quit:    make(chan struct{}),
		runDone: make(chan struct{}),
		notifs:  make(chan Notification, 32),
		frames:  make(chan Frame, 16),
		state:   StateIdle,
	}
	go s.run()

	slog.Info("streamview: session created",
		"url", cfg.Endpoint.URL,
		"transport", cfg.Endpoint.Transport.String(),
		"latency", cfg.Endpoint.Latency,
		"decode_paths", len(cfg.DecodePaths),
	)
	return s, nil
}

// Start brings the session up: builds a graph via the fallback selector
// and commands it to play. It blocks until the graph is committed (or
// construction fails) and returns the session state at that point.
//
// Starting a session that is not Idle is a no-op returning the current
// state; a second graph is never constructed.
func (s *Session) Start(ctx context.Context) (SessionState, error) {
	reply := make(chan startReply, 1)
	select {
	case s.cmds <- cmdStart{ctx: ctx, reply: reply}:
	case <-s.runDone:
		return StateIdle, ErrSessionClosed
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}

	select {
	case r := <-reply:
		return r.state, r.err
	case <-s.runDone:
		return StateIdle, ErrSessionClosed
	case <-ctx.Done():
		// The builder shares ctx, so cancellation unwinds the in-flight
		// attempt as well.
		return s.State(), ctx.Err()
	}
}

// Stop tears the current graph down and returns the session to Idle. It
// blocks until teardown completes. Idempotent: stopping an Idle session
// is a no-op; a stop issued during construction is remembered and honored
// when the in-flight build completes.
func (s *Session) Stop() error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- cmdStop{reply: reply}:
	case <-s.runDone:
		return nil
	}

	select {
	case err := <-reply:
		return err
	case <-s.runDone:
		return nil
	}
}

// Close stops the session and shuts its run loop down. The notification
// and frame channels are closed. The session cannot be restarted.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.Stop()
	close(s.quit)
	<-s.runDone
	return err
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Frames returns the decoded frame channel. Delivery is non-blocking on
// the session side: when the caller falls behind, frames are dropped and
// counted, never queued unboundedly. Closed by Close.
func (s *Session) Frames() <-chan Frame {
	return s.frames
}

// Notifications returns the lifecycle notification channel. Closed by
// Close.
func (s *Session) Notifications() <-chan Notification {
	return s.notifs
}

// Stats returns current session statistics.
//
// Thread-safe - uses atomic operations for counters.
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	state := s.state
	decodePath := s.decodePath
	hardware := s.hardware
	started := s.started
	lastFrameAt := s.lastFrameAt
	s.mu.RUnlock()

	frameCount := atomic.LoadUint64(&s.frameCount)
	framesDropped := atomic.LoadUint64(&s.framesDropped)

	var uptime time.Duration
	var fpsReal float64
	if !started.IsZero() {
		uptime = time.Since(started)
		if secs := uptime.Seconds(); secs > 0 {
			fpsReal = float64(frameCount) / secs
		}
	}

	var dropRate float64
	if total := frameCount + framesDropped; total > 0 {
		dropRate = (float64(framesDropped) / float64(total)) * 100.0
	}

	var latencyMS int64
	if !lastFrameAt.IsZero() {
		latencyMS = time.Since(lastFrameAt).Milliseconds()
	}

	return SessionStats{
		State:         state,
		DecodePath:    decodePath,
		Hardware:      hardware,
		FrameCount:    frameCount,
		FramesDropped: framesDropped,
		DropRate:      dropRate,
		FPSReal:       fpsReal,
		LatencyMS:     latencyMS,
		BytesRead:     atomic.LoadUint64(&s.bytesRead),
		Uptime:        uptime,
		FaultsNetwork: atomic.LoadUint64(&s.faultsNetwork),
		FaultsCodec:   atomic.LoadUint64(&s.faultsCodec),
		FaultsAuth:    atomic.LoadUint64(&s.faultsAuth),
		FaultsUnknown: atomic.LoadUint64(&s.faultsUnknown),
	}
}

// Measure consumes frames for the given duration and returns delivery
// rate statistics. It competes with any other consumer of Frames, so it
// is meant for the settling window right after Start.
func (s *Session) Measure(ctx context.Context, duration time.Duration) (*RateStats, error) {
	if s.State() == StateIdle {
		return nil, fmt.Errorf("streamview: session not started")
	}

	mctx, cancel := context.WithCancel(ctx)
	defer cancel()

	arrivals := make(chan time.Time, 16)
	go func() {
		defer close(arrivals)
		for {
			select {
			case <-mctx.Done():
				return
			case f, ok := <-s.frames:
				if !ok {
					return
				}
				select {
				case arrivals <- f.Timestamp:
				case <-mctx.Done():
					return
				}
			}
		}
	}()

	stats, err := rate.Measure(mctx, arrivals, duration)
	if err != nil {
		return nil, fmt.Errorf("streamview: measure: %w", err)
	}

	return &RateStats{
		FramesReceived: stats.FramesReceived,
		Duration:       stats.Duration,
		FPSMean:        stats.FPSMean,
		FPSStdDev:      stats.FPSStdDev,
		FPSMin:         stats.FPSMin,
		FPSMax:         stats.FPSMax,
		IsStable:       stats.IsStable,
		JitterMean:     stats.JitterMean,
		JitterMax:      stats.JitterMax,
	}, nil
}

// topologyFor maps a decode path to the concrete unit sequence for this
// session's endpoint.
func (s *Session) topologyFor(path DecodePath) graph.Topology {
	ep := s.cfg.Endpoint
	return graph.Topology{
		Name: path.String(),
		Roles: []graph.Role{
			graph.SourceRole(graph.SourceConfig{
				Location:      ep.URL,
				Latency:       ep.Latency,
				Transport:     ep.Transport.internal(),
				RetryBudget:   ep.RetryBudget,
				Timeout:       ep.Timeout,
				UDPBufferSize: ep.UDPBufferSize,
			}),
			graph.DepayRole(graph.DepayConfig{RequestKeyframe: true}),
			graph.ParserRole(),
			graph.DecoderRole(graph.DecoderConfig{
				Variant:     path.variant(),
				LowLatency:  s.cfg.LowLatency,
				MaxThreads:  s.cfg.DecodeThreads,
				SkipCorrupt: s.cfg.SkipCorrupt,
			}),
			graph.ConverterRole(graph.ConverterConfig{}),
			graph.SinkRole(graph.SinkConfig{
				Sync:       false,
				MaxBuffers: s.cfg.SinkBuffers,
				Drop:       true,
			}),
		},
	}
}

// run is the session's single-owner state machine loop. Only this
// goroutine mutates lifecycle state; everything else posts commands.
func (s *Session) run() {
	defer close(s.runDone)

	var (
		g          *graph.Graph
		gdone      chan struct{}
		events     <-chan graph.Event
		releasing  bool
		stopLatent bool // stop requested while Constructing
		pending    chan startReply
		stops      []chan error
		notified   bool // fault notification emitted for current graph
	)

	replyStops := func() {
		for _, w := range stops {
			w <- nil
		}
		stops = nil
	}

	scheduleRelease := func(victim *graph.Graph, done chan struct{}, cause releaseCause) {
		releasing = true
		go func() {
			victim.Release()
			if done != nil {
				close(done)
			}
			s.cmds <- cmdReleased{cause: cause}
		}()
	}

	for {
		select {
		case <-s.quit:
			// Close is preceded by a synchronous Stop, so no graph or
			// teardown should be live here; release defensively anyway.
			if g != nil {
				g.Release()
				if gdone != nil {
					close(gdone)
				}
			}
			// A forwarder may still be delivering its last frame; closing
			// s.frames under it would panic the send.
			s.fwd.Wait()
			close(s.notifs)
			close(s.frames)
			return

		case cmd := <-s.cmds:
			switch c := cmd.(type) {
			case cmdStart:
				if st := s.State(); st != StateIdle {
					slog.Debug("streamview: start ignored, session not idle", "state", st.String())
					c.reply <- startReply{state: st}
					continue
				}
				s.setState(StateConstructing)
				s.notify(Notification{
					Kind:  NotifyStarting,
					State: StateConstructing,
					At:    time.Now(),
				})
				pending = c.reply
				notified = false
				go s.build(c.ctx)

			case cmdStop:
				switch s.State() {
				case StateIdle:
					c.reply <- nil
				case StateConstructing:
					stopLatent = true
					stops = append(stops, c.reply)
				case StateStopping, StateFaulted:
					if releasing {
						stops = append(stops, c.reply)
					} else {
						c.reply <- nil
					}
				default: // Negotiating, Active
					s.setState(StateStopping)
					stops = append(stops, c.reply)
					events = nil
					scheduleRelease(g, gdone, causeStop)
					g, gdone = nil, nil
				}

			case cmdBuilt:
				if stopLatent {
					// The caller stopped while the build was in flight:
					// honor the stop, never go active.
					stopLatent = false
					if pending != nil {
						pending <- startReply{state: StateIdle, err: ErrStoppedDuringStart}
						pending = nil
					}
					if c.err != nil {
						s.setState(StateIdle)
						replyStops()
						continue
					}
					s.setState(StateStopping)
					scheduleRelease(c.g, nil, causeStop)
					continue
				}

				if c.err != nil {
					slog.Error("streamview: construction failed", "error", c.err)
					s.setState(StateIdle)
					pending <- startReply{state: StateIdle, err: c.err}
					pending = nil
					continue
				}

				g = c.g
				gdone = make(chan struct{})
				events = g.Events()
				s.setGraphInfo(g.Topology().Name)
				s.setState(StateNegotiating)

				if err := g.Play(); err != nil {
					s.fault(err.Error(), "", &notified)
					events = nil
					scheduleRelease(g, gdone, causeFault)
					g, gdone = nil, nil
					pending <- startReply{state: StateFaulted, err: err}
					pending = nil
					continue
				}

				s.markStarted()
				s.fwd.Add(1)
				go s.forward(g.Frames(), gdone)
				pending <- startReply{state: StateNegotiating}
				pending = nil

			case cmdReleased:
				releasing = false
				s.setState(StateIdle)
				s.clearGraphInfo()
				replyStops()
				if c.cause != causeFault {
					// Orderly completion; faults were already announced.
					s.notify(Notification{
						Kind:  NotifyStopped,
						State: StateIdle,
						At:    time.Now(),
					})
				}
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Class {
			case graph.ClassError:
				s.fault(ev.Message, ev.Debug, &notified)
				events = nil
				scheduleRelease(g, gdone, causeFault)
				g, gdone = nil, nil

			case graph.ClassEndOfStream:
				slog.Info("streamview: end of stream",
					"decode_path", s.Stats().DecodePath,
					"frames_delivered", atomic.LoadUint64(&s.frameCount),
				)
				s.setState(StateStopping)
				events = nil
				scheduleRelease(g, gdone, causeEOS)
				g, gdone = nil, nil

			case graph.ClassWarning:
				slog.Warn("streamview: graph warning",
					"source", ev.Source,
					"message", ev.Message,
					"debug", ev.Debug,
				)

			case graph.ClassStateChanged:
				// Only the top-level graph's transitions matter; per-unit
				// ones are substage noise.
				if g == nil || ev.Source != g.Name() {
					continue
				}
				slog.Debug("streamview: graph state changed",
					"from", ev.OldState,
					"to", ev.NewState,
				)
				if s.State() == StateNegotiating && ev.NewState == "PLAYING" {
					s.setState(StateActive)
					s.notify(Notification{
						Kind:       NotifyActive,
						State:      StateActive,
						DecodePath: g.Topology().Name,
						At:         time.Now(),
					})
				}
			}
		}
	}
}

// build runs the fallback selector on a worker goroutine and posts the
// result back to the run loop.
func (s *Session) build(ctx context.Context) {
	topologies := make([]graph.Topology, 0, len(s.cfg.DecodePaths))
	for _, path := range s.cfg.DecodePaths {
		topologies = append(topologies, s.topologyFor(path))
	}

	g, err := graph.Select(ctx, s.backend, topologies)
	s.cmds <- cmdBuilt{g: g, err: err}
}

// forward pumps decoded frames from the graph boundary to the caller,
// non-blocking with drop accounting, until the graph is released.
func (s *Session) forward(frames <-chan graph.Frame, done <-chan struct{}) {
	defer s.fwd.Done()
	if frames == nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			frame := Frame{
				Seq:       f.Seq,
				Timestamp: f.Timestamp,
				Width:     f.Width,
				Height:    f.Height,
				Data:      f.Data,
				TraceID:   f.TraceID,
			}

			s.mu.Lock()
			s.lastFrameAt = time.Now()
			s.mu.Unlock()
			atomic.AddUint64(&s.frameCount, 1)
			atomic.AddUint64(&s.bytesRead, uint64(len(f.Data)))

			if s.display != nil {
				s.display.Render(frame)
			}

			select {
			case s.frames <- frame:
			default:
				atomic.AddUint64(&s.framesDropped, 1)
				slog.Debug("streamview: dropping frame, channel full",
					"seq", frame.Seq,
					"trace_id", frame.TraceID,
				)
			}
		}
	}
}

// fault records and announces a runtime fault. At most one NotifyFaulted
// is emitted per started session.
func (s *Session) fault(message, debug string, notified *bool) {
	category := graph.ClassifyReason(message, debug)
	switch category {
	case graph.CategoryNetwork:
		atomic.AddUint64(&s.faultsNetwork, 1)
	case graph.CategoryCodec:
		atomic.AddUint64(&s.faultsCodec, 1)
	case graph.CategoryAuth:
		atomic.AddUint64(&s.faultsAuth, 1)
	default:
		atomic.AddUint64(&s.faultsUnknown, 1)
	}

	slog.Error("streamview: session fault",
		"reason", message,
		"debug", debug,
		"category", category.String(),
		"frames_delivered", atomic.LoadUint64(&s.frameCount),
	)

	s.setState(StateFaulted)

	if !*notified {
		*notified = true
		s.notify(Notification{
			Kind:       NotifyFaulted,
			State:      StateFaulted,
			DecodePath: s.Stats().DecodePath,
			Reason:     message,
			Category:   faultCategory(category),
			At:         time.Now(),
		})
	}
}

// notify delivers a notification without blocking the run loop.
func (s *Session) notify(n Notification) {
	select {
	case s.notifs <- n:
	default:
		slog.Warn("streamview: notification channel full, dropping",
			"kind", n.Kind.String(),
			"state", n.State.String(),
		)
	}
}

func (s *Session) setState(next SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		slog.Debug("streamview: state transition",
			"from", prev.String(),
			"to", next.String(),
		)
	}
}

func (s *Session) setGraphInfo(topology string) {
	hw := false
	for _, p := range s.cfg.DecodePaths {
		if p.String() == topology {
			hw = p.Hardware()
			break
		}
	}
	s.mu.Lock()
	s.decodePath = topology
	s.hardware = hw
	s.mu.Unlock()
}

func (s *Session) clearGraphInfo() {
	s.mu.Lock()
	s.decodePath = ""
	s.hardware = false
	s.started = time.Time{}
	s.lastFrameAt = time.Time{}
	s.mu.Unlock()
}

func (s *Session) markStarted() {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
}
