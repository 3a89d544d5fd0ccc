// Package streamview orchestrates a live H.264 RTSP viewing pipeline on
// top of GStreamer.
//
// A Session owns at most one processing graph at a time and drives it
// through a lifecycle state machine (Idle, Constructing, Negotiating,
// Active, Stopping, Faulted). The graph is assembled dynamically from an
// ordered list of decode paths: dedicated hardware decode is tried
// first, then the generic accelerated path, then software. The first
// path that constructs wins; a failed attempt is fully released before
// the next is tried.
//
// # Quick Start
//
// The simplest way to view an RTSP stream:
//
//	cfg := streamview.Config{
//	    Endpoint: streamview.Endpoint{
//	        URL: "rtsp://192.168.1.100/stream",
//	    },
//	}
//
//	session, err := streamview.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	if _, err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for frame := range session.Frames() {
//	    // frame.Data contains raw video bytes
//	    presentFrame(frame)
//	}
//
// # Lifecycle
//
// Start builds the graph and commands it to play, returning once the
// graph is committed (normally in Negotiating). An accepted start is
// announced as Starting on Notifications(); Active follows once the
// graph reaches its running state, and frames then arrive on Frames().
//
// The source's output appears only after RTSP negotiation, so the link
// from the source into the rest of the graph is deferred: the session
// completes it when the source announces a video output. Non-video
// announcements are ignored, duplicates are a no-op, and a failed link
// is a fault.
//
// A runtime fault (bus error or failed negotiated link) moves the
// session to Faulted, emits exactly one Faulted notification with a
// classified reason (network, codec, auth, unknown), releases the graph
// and returns to Idle, ready for a fresh Start. The session never
// reconnects on its own; restart policy belongs to the caller (the
// bundled CLI offers an opt-in backoff restart loop).
//
// # Frame Delivery
//
// Frames are copied out of the framework at the graph boundary and
// forwarded non-blocking: when the consumer falls behind, frames are
// dropped and counted rather than queued, keeping the view live.
//
// # Statistics
//
// Real-time statistics are available via Stats():
//
//	stats := session.Stats()
//	fmt.Printf("state: %s, path: %s\n", stats.State, stats.DecodePath)
//	fmt.Printf("FPS: %.2f, drop rate: %.2f%%\n", stats.FPSReal, stats.DropRate)
//
// Measure() consumes frames for a window and reports delivery-rate
// stability, useful right after Start.
//
// # Dependencies
//
// GStreamer 1.x must be installed on the system:
//
//	# Ubuntu/Debian
//	sudo apt-get install \
//	    gstreamer1.0-tools \
//	    gstreamer1.0-plugins-base \
//	    gstreamer1.0-plugins-good \
//	    gstreamer1.0-plugins-bad \
//	    gstreamer1.0-libav
//
// For VAAPI hardware decode (Intel GPUs):
//
//	sudo apt-get install gstreamer1.0-vaapi intel-media-va-driver-non-free
//
// Verify the elements the decode paths rely on:
//
//	gst-inspect-1.0 rtspsrc
//	gst-inspect-1.0 vaapih264dec   # dedicated hardware path
//	gst-inspect-1.0 vaapidecodebin # generic hardware path
//	gst-inspect-1.0 avdec_h264     # software path
//
// Missing hardware elements are not an error: the fallback selector
// simply lands on the software path.
//
// # Limitations
//
//   - RTSP/H.264 only (no HLS, WebRTC, or file sources)
//   - Single stream per Session
//   - No audio (video only)
package streamview
