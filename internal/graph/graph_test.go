package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/streamview/internal/graph"
	"github.com/e7canasta/streamview/internal/graph/graphtest"
)

func testTopology(name string, variant graph.DecoderVariant) graph.Topology {
	return graph.Topology{
		Name: name,
		Roles: []graph.Role{
			graph.SourceRole(graph.SourceConfig{
				Location: "rtsp://camera.local/stream",
				Latency:  200 * time.Millisecond,
			}),
			graph.DepayRole(graph.DepayConfig{RequestKeyframe: true}),
			graph.ParserRole(),
			graph.DecoderRole(graph.DecoderConfig{Variant: variant}),
			graph.ConverterRole(graph.ConverterConfig{}),
			graph.SinkRole(graph.SinkConfig{MaxBuffers: 5, Drop: true}),
		},
	}
}

func TestTopologyValidate(t *testing.T) {
	source := graph.SourceRole(graph.SourceConfig{Location: "rtsp://x"})
	sink := graph.SinkRole(graph.SinkConfig{})
	parser := graph.ParserRole()

	tests := []struct {
		name    string
		topo    graph.Topology
		wantErr bool
	}{
		{
			name:    "valid minimal",
			topo:    graph.Topology{Name: "min", Roles: []graph.Role{source, sink}},
			wantErr: false,
		},
		{
			name:    "valid full",
			topo:    testTopology("full", graph.DecoderSoftware),
			wantErr: false,
		},
		{
			name:    "missing name",
			topo:    graph.Topology{Roles: []graph.Role{source, sink}},
			wantErr: true,
		},
		{
			name:    "too short",
			topo:    graph.Topology{Name: "short", Roles: []graph.Role{source}},
			wantErr: true,
		},
		{
			name:    "source not first",
			topo:    graph.Topology{Name: "swapped", Roles: []graph.Role{parser, sink}},
			wantErr: true,
		},
		{
			name:    "sink not last",
			topo:    graph.Topology{Name: "nosink", Roles: []graph.Role{source, parser}},
			wantErr: true,
		},
		{
			name:    "interior sink",
			topo:    graph.Topology{Name: "interior", Roles: []graph.Role{source, sink, parser, sink}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topo.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuild_Success(t *testing.T) {
	backend := graphtest.New()
	topo := testTopology("software", graph.DecoderSoftware)

	g, err := graph.Build(backend, topo)
	require.NoError(t, err)
	defer g.Release()

	assert.Equal(t, "software", g.Name())
	assert.Equal(t, topo.Name, g.Topology().Name)
	assert.NotNil(t, g.Frames(), "sink should expose decoded frames")

	// Negotiation has not happened; the graph holds every unit plus the
	// container.
	assert.Equal(t, len(topo.Roles)+1, backend.Allocated())
}

func TestBuild_UnavailableDecoderReleasesEverything(t *testing.T) {
	backend := graphtest.New()
	backend.FailDecoder(graph.DecoderVAAPIH264, graph.ErrUnavailableCapability)

	_, err := graph.Build(backend, testTopology("vaapi-h264", graph.DecoderVAAPIH264))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrUnavailableCapability)

	// Atomic construction: the failed attempt leaks nothing.
	assert.Equal(t, 0, backend.Allocated())
}

func TestBuild_StaticLinkFailureReleasesEverything(t *testing.T) {
	backend := graphtest.New()
	backend.StaticLinkErr = graph.ErrLinkIncompatible

	_, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrLinkIncompatible)
	assert.Equal(t, 0, backend.Allocated())
}

func TestBuild_InvalidTopology(t *testing.T) {
	backend := graphtest.New()

	_, err := graph.Build(backend, graph.Topology{Name: "empty"})
	require.Error(t, err)
	assert.Equal(t, 0, backend.ContainersCreated(), "validation failure should not reach the backend")
}

func TestGraph_NegotiationLinksDeferredPort(t *testing.T) {
	backend := graphtest.New()

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)
	defer g.Release()

	p := backend.Container().Announce("video/x-h264")
	require.NotNil(t, p)
	assert.True(t, p.Linked(), "video announcement should complete the deferred link")
}

func TestGraph_IgnoresNonVideoAnnouncement(t *testing.T) {
	backend := graphtest.New()

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)
	defer g.Release()

	p := backend.Container().Announce("application/x-rtp")
	require.NotNil(t, p)
	assert.False(t, p.Linked(), "non-video announcement must be ignored")

	// The video announcement that follows still links.
	vp := backend.Container().Announce("video/x-h264")
	require.NotNil(t, vp)
	assert.True(t, vp.Linked())
}

func TestGraph_DuplicateAnnouncementIsNoOp(t *testing.T) {
	backend := graphtest.New()

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)
	defer g.Release()

	first := backend.Container().Announce("video/x-h264")
	require.True(t, first.Linked())

	// A second announcement arrives; the handler must not disturb the
	// established link or emit an error.
	second := backend.Container().Announce("video/x-h264")
	require.NotNil(t, second)
	assert.False(t, second.Linked(), "duplicate announcement must not be linked")

	select {
	case ev := <-g.Events():
		t.Fatalf("unexpected event after duplicate announcement: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGraph_NegotiationLinkFailureSurfacesAsError(t *testing.T) {
	backend := graphtest.New()
	backend.DynamicLinkErr = errors.New("caps mismatch")

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)
	defer g.Release()

	backend.Container().Announce("video/x-h264")

	select {
	case ev := <-g.Events():
		assert.Equal(t, graph.ClassError, ev.Class)
		assert.Contains(t, ev.Message, "negotiated link failed")
	case <-time.After(time.Second):
		t.Fatal("expected error event after link failure")
	}
}

func TestGraph_ForwardsContainerEvents(t *testing.T) {
	backend := graphtest.New()

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)
	defer g.Release()

	backend.Container().Inject(graph.Event{
		Class:   graph.ClassError,
		Message: "could not connect to server",
	})

	select {
	case ev := <-g.Events():
		assert.Equal(t, graph.ClassError, ev.Class)
		assert.Equal(t, "software", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("expected forwarded container event")
	}
}

func TestGraph_ReleaseIsIdempotentAndFreesEverything(t *testing.T) {
	backend := graphtest.New()

	g, err := graph.Build(backend, testTopology("software", graph.DecoderSoftware))
	require.NoError(t, err)

	g.Release()
	g.Release() // second call is a no-op

	assert.Equal(t, 0, backend.Allocated())

	_, open := <-g.Events()
	assert.False(t, open, "event channel must be closed after release")
}

func TestSelect_FallbackOrder(t *testing.T) {
	backend := graphtest.New()
	backend.FailDecoder(graph.DecoderVAAPIH264, graph.ErrUnavailableCapability)
	backend.FailDecoder(graph.DecoderVAAPIGeneric, graph.ErrUnavailableCapability)

	topologies := []graph.Topology{
		testTopology("vaapi-h264", graph.DecoderVAAPIH264),
		testTopology("vaapi-generic", graph.DecoderVAAPIGeneric),
		testTopology("software", graph.DecoderSoftware),
	}

	g, err := graph.Select(context.Background(), backend, topologies)
	require.NoError(t, err)
	defer g.Release()

	assert.Equal(t, "software", g.Topology().Name)
	assert.Equal(t, 3, backend.ContainersCreated(), "each tier should be attempted once, in order")
}

func TestSelect_FirstChoiceWins(t *testing.T) {
	backend := graphtest.New()

	topologies := []graph.Topology{
		testTopology("vaapi-h264", graph.DecoderVAAPIH264),
		testTopology("software", graph.DecoderSoftware),
	}

	g, err := graph.Select(context.Background(), backend, topologies)
	require.NoError(t, err)
	defer g.Release()

	assert.Equal(t, "vaapi-h264", g.Topology().Name)
	assert.Equal(t, 1, backend.ContainersCreated(), "later tiers must not be probed")
}

func TestSelect_ExhaustedListLeaksNothing(t *testing.T) {
	backend := graphtest.New()
	backend.FailKind(graph.KindDecoder, graph.ErrUnavailableCapability)

	topologies := []graph.Topology{
		testTopology("vaapi-h264", graph.DecoderVAAPIH264),
		testTopology("vaapi-generic", graph.DecoderVAAPIGeneric),
		testTopology("software", graph.DecoderSoftware),
	}

	_, err := graph.Select(context.Background(), backend, topologies)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNoViableTopology)
	// The combined error names every attempted tier.
	assert.Contains(t, err.Error(), "vaapi-h264")
	assert.Contains(t, err.Error(), "vaapi-generic")
	assert.Contains(t, err.Error(), "software")

	assert.Equal(t, 0, backend.Allocated())
}

func TestSelect_EmptyList(t *testing.T) {
	backend := graphtest.New()

	_, err := graph.Select(context.Background(), backend, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNoViableTopology)
}

func TestSelect_CancelledBetweenAttempts(t *testing.T) {
	backend := graphtest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := graph.Select(ctx, backend, []graph.Topology{
		testTopology("software", graph.DecoderSoftware),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, backend.Allocated())
}
