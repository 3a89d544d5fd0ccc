package streamview

import (
	"context"
	"time"
)

// Streamer defines the caller-facing contract of a viewing session
//
// Implementations must guarantee:
//   - Start() on a non-Idle session is a no-op returning the current state
//   - At most one processing graph exists at any time
//   - Stop() is idempotent (safe to call multiple times, any state)
//   - A stop issued during construction is honored when the build completes
//   - Frames() delivery is non-blocking (drop-when-full, never queued unboundedly)
//   - Exactly one Starting notification is emitted per accepted start
//   - At most one Faulted notification is emitted per started session
//   - Stats() is thread-safe (can be called from any goroutine)
type Streamer interface {
	// Start brings the session up: each configured decode path is tried in
	// preference order and the first graph that constructs is committed.
	//
	// Start blocks until the graph is committed and commanded to play, then
	// returns the session state at that point (normally Negotiating; the
	// session announces Active through Notifications once the graph reaches
	// its running state). Frames arrive asynchronously on Frames().
	//
	// Starting a session that is not Idle never constructs a second graph;
	// the call is a no-op returning the current state.
	//
	// Returns an error if:
	//   - Every configured decode path fails (ErrNoViableDecodePath)
	//   - Stop was issued while construction was in flight (ErrStoppedDuringStart)
	//   - The context is cancelled mid-construction
	//
	// Example:
	//   session, _ := streamview.New(cfg)
	//   state, err := session.Start(ctx)
	//   if err != nil {
	//       log.Fatal(err)
	//   }
	//   log.Printf("session committed in state %s", state)
	//
	//   for frame := range session.Frames() {
	//       // Present frame...
	//   }
	Start(ctx context.Context) (SessionState, error)

	// Stop tears the current graph down and returns the session to Idle.
	//
	// Blocks until teardown completes. Safe to call multiple times and in
	// any state: stopping an Idle session returns nil immediately, and a
	// stop during construction is remembered and honored when the in-flight
	// build finishes.
	Stop() error

	// Close stops the session and shuts it down permanently. The frame and
	// notification channels are closed; the session cannot be restarted.
	Close() error

	// State returns the current lifecycle state.
	State() SessionState

	// Frames returns the decoded frame channel. The channel stays open
	// across restarts and is closed only by Close. When the consumer falls
	// behind, frames are dropped and counted rather than queued.
	Frames() <-chan Frame

	// Notifications returns the lifecycle notification channel: Starting
	// (once per accepted start), Active, Stopped (orderly completion,
	// including end-of-stream) and Faulted (with a classified reason).
	// Closed by Close.
	Notifications() <-chan Notification

	// Stats returns current session statistics.
	//
	// This method is thread-safe and can be called from any goroutine.
	// Counters are updated atomically during session operation.
	Stats() SessionStats

	// Measure consumes frames for the given duration and returns delivery
	// rate statistics (mean/stddev/min/max FPS, jitter, stability verdict).
	//
	// Meant for the settling window right after Start; it competes with any
	// other consumer of Frames(). Blocks for the entire duration.
	Measure(ctx context.Context, duration time.Duration) (*RateStats, error)
}

// DisplaySink receives decoded frames for presentation. Render is called
// from the session's delivery goroutine in frame order and must not
// block; a slow sink stalls delivery and forces drops at the graph
// boundary instead.
type DisplaySink interface {
	Render(frame Frame)
}

// Session implements Streamer.
var _ Streamer = (*Session)(nil)
